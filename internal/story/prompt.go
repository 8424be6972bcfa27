package story

import (
	"fmt"
	"math/rand/v2"
)

var (
	themes = []string{
		"小動物的冒險", "友誼的力量", "勇氣與成長", "溫暖的家庭",
		"魔法與奇幻", "善良的心靈", "夢想與希望",
	}
	characters = []string{
		"小兔子", "小熊", "小貓", "小鳥", "小狐狸", "小松鼠", "小象",
	}
	settings = []string{
		"森林", "花園", "小村莊", "城堡", "海邊", "山谷", "星空下",
	}
)

// Prompt is one randomized story request.
type Prompt struct {
	Theme     string
	Character string
	Setting   string
	RequestID string
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}

// NewPrompt picks theme, character and setting uniformly at random.
func NewPrompt(rng *rand.Rand, requestID string) Prompt {
	return Prompt{
		Theme:     pick(rng, themes),
		Character: pick(rng, characters),
		Setting:   pick(rng, settings),
		RequestID: requestID,
	}
}

// Text renders the user prompt sent to the generator.
func (p Prompt) Text() string {
	return fmt.Sprintf(`請創作一個全新的、獨特的兒童睡前故事。

要求：
- 主題：%s
- 主角：%s
- 場景：%s
- 長度：大約200字
- 使用繁體中文
- 適合3到8歲的孩子
- 語氣溫柔平靜，結尾讓人安心入睡
- 傳達正面的價值，例如友誼、勇氣、善良
- 只輸出故事內容，不要標題、不要任何標記或格式

請求編號：%s`, p.Theme, p.Character, p.Setting, p.RequestID)
}

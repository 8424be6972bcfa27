package story

// cannedStory is a built-in story before it gets an ID and hints.
type cannedStory struct {
	title    string
	segments []string
}

var defaultStory = cannedStory{
	title: "小兔子與月亮",
	segments: []string{
		"從前從前，在一片安靜的森林裡，住著一隻可愛的小白兔。",
		"每天晚上，小白兔都會抬頭看著天上又大又圓的月亮。",
		"牠好想知道，月亮是不是也會覺得孤單。",
		"有一天晚上，月亮輕輕地對小白兔說：我一點也不孤單，因為有你陪著我。",
		"小白兔開心地笑了，牠說：那我每天晚上都來跟你說晚安。",
		"森林裡的小鳥、小鹿和小松鼠也都聽見了，大家一起向月亮揮揮手。",
		"月亮灑下溫柔的光，像一條軟軟的被子，蓋在每個小動物身上。",
		"小白兔閉上眼睛，在月光裡甜甜地睡著了。晚安，小寶貝。",
	},
}

var fallbackStories = []cannedStory{
	{
		title: "小熊和星星",
		segments: []string{
			"在高高的山上，住著一隻毛茸茸的小熊。",
			"小熊最喜歡在晚上數天上的星星，一顆、兩顆、三顆。",
			"有一天，一顆小星星不小心從天上掉了下來，落在小熊的家門口。",
			"小星星哭著說：我找不到回家的路了。",
			"小熊溫柔地抱起小星星，爬到山頂最高的那棵大樹上。",
			"小熊用力把小星星送回天空，小星星一閃一閃地說謝謝。",
			"從那天起，每天晚上小星星都會特別亮，照著小熊的窗戶。",
			"小熊看著好朋友，慢慢地閉上眼睛，做了一個亮晶晶的好夢。",
		},
	},
	{
		title: "勇敢的小貓咪",
		segments: []string{
			"小村莊裡有一隻小花貓，牠很害怕黑漆漆的夜晚。",
			"每到天黑，小花貓就躲進被窩裡，連眼睛都不敢張開。",
			"有一天晚上，小花貓聽見窗外有小小的哭聲。",
			"原來是一隻迷路的小鴨子，在黑暗裡找不到媽媽。",
			"小花貓深深吸了一口氣，鼓起勇氣走出家門。",
			"牠陪著小鴨子沿著小河走，終於找到了鴨媽媽。",
			"鴨媽媽說：謝謝你，勇敢的小貓咪。小花貓發現，黑夜其實一點也不可怕。",
			"回到家後，小花貓安心地躺在床上，聽著蟲兒唱歌，慢慢睡著了。",
		},
	},
	{
		title: "魔法花園",
		segments: []string{
			"在城堡後面，有一座會發光的魔法花園。",
			"花園裡的花朵，每到晚上都會輕輕地唱起搖籃曲。",
			"一隻小松鼠聽說了這個秘密，決定去看一看。",
			"牠輕手輕腳地走進花園，看見玫瑰、百合和小雛菊都在微微發亮。",
			"花朵們說：歡迎你，小松鼠，我們每天都為睡不著的孩子唱歌。",
			"小松鼠也跟著哼起歌來，聲音小小的，軟軟的。",
			"月光照在花瓣上，整座花園像是蓋上了一層銀色的被子。",
			"小松鼠靠在最大的那朵花旁邊，聽著歌聲，甜甜地睡著了。",
		},
	},
	{
		title: "月亮船的旅行",
		segments: []string{
			"今晚的月亮彎彎的，像一艘金色的小船。",
			"一隻小象坐上了月亮船，準備出發去旅行。",
			"月亮船慢慢地飛過大海，海浪輕輕地說著晚安。",
			"月亮船飛過山谷，山谷裡的小花都閉上了眼睛。",
			"月亮船飛過小村莊，每一扇窗戶裡都亮著溫暖的燈。",
			"小象看見好多好多的孩子，都已經蓋好被子，準備睡覺了。",
			"月亮船最後停在小象的家門口，月亮說：旅行結束囉，該睡覺了。",
			"小象回到自己的小床上，想著今晚的旅行，帶著微笑進入了夢鄉。",
		},
	},
}

// LoadingMessages rotate on screen while a story is being written.
var LoadingMessages = []string{
	"AI正在為你編織故事...",
	"正在挑選故事裡的小主角...",
	"正在佈置夢幻的場景...",
	"故事馬上就好了，請稍等一下...",
}

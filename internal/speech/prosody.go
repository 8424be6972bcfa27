package speech

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strings"
)

// voiceLang extracts the locale from a voice name like "zh-TW-HsiaoChenNeural".
func voiceLang(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "zh-TW"
	}
	return parts[0] + "-" + parts[1]
}

// relativePercent renders a multiplier as an SSML relative change:
// 0.8 -> "-20%", 1.1 -> "+10%". Zero means unset.
func relativePercent(mult float64) string {
	if mult <= 0 {
		return "+0%"
	}
	return fmt.Sprintf("%+d%%", int(math.Round((mult-1)*100)))
}

// volumePercent renders a 0..1 volume as an absolute SSML volume.
func volumePercent(v float64) string {
	if v <= 0 || v > 1 {
		v = 1
	}
	return fmt.Sprintf("%d", int(math.Round(v*100)))
}

// volumeDecibels renders a 0..1 volume as a relative dB change for Polly.
func volumeDecibels(v float64) string {
	if v <= 0 || v >= 1 {
		return "+0dB"
	}
	return fmt.Sprintf("%+ddB", int(math.Round(20*math.Log10(v))))
}

// escapeSSML escapes text for inclusion in SSML markup.
func escapeSSML(text string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(text))
	return b.String()
}

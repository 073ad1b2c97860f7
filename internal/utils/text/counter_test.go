package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"ascii", "hello", 5},
		{"chinese", "你好世界", 4},
		{"mixed", "hello世界", 7},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountRunes(tt.text))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "你好世", TruncateRunes("你好世界", 3))
	assert.Equal(t, "你好", TruncateRunes("你好", 3))
}

func TestTruncateAtSentence(t *testing.T) {
	// Separator past the midpoint of the window wins.
	got := TruncateAtSentence("第一句话说完了。第二句话还很长很长很长", 10)
	assert.Equal(t, "第一句话说完了。", got)

	// No separator in range falls back to a hard cut.
	got = TruncateAtSentence("没有任何分隔符的超长文本继续继续", 6)
	assert.Equal(t, "没有任何分隔", got)

	// Short text passes through.
	assert.Equal(t, "短句。", TruncateAtSentence("短句。", 10))
}

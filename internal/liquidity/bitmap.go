package liquidity

import (
	"fmt"
	"math/bits"

	"dexlens/internal/model"
)

const (
	minTick = -887272
	maxTick = 887272
)

// WordPosition returns the bitmap word index covering a tick for the given
// spacing. Negative ticks floor toward the lower word.
func WordPosition(tick, tickSpacing int32) int32 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	word := compressed >> 8
	return word
}

// DecodeWord extracts the initialized tick indexes flagged in a bitmap word.
// A zero word yields no ticks. Results are in ascending bit order, so ticks
// come out ascending; decoding is idempotent.
func DecodeWord(word model.TickWord, tickSpacing int32) ([]int32, error) {
	if tickSpacing <= 0 {
		return nil, fmt.Errorf("tick spacing must be positive, got %d", tickSpacing)
	}
	if word.Bitmap == nil || word.Bitmap.IsZero() {
		return nil, nil
	}

	ticks := make([]int32, 0, 8)
	base := int64(word.WordIndex) * 256
	for limb := 0; limb < 4; limb++ {
		w := word.Bitmap[limb]
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			pos := base + int64(limb*64+bit)
			tick := pos * int64(tickSpacing)
			if tick < minTick || tick > maxTick {
				return nil, fmt.Errorf("tick %d out of int24 range (word %d bit %d)", tick, word.WordIndex, limb*64+bit)
			}
			ticks = append(ticks, int32(tick))
			w &= w - 1
		}
	}
	return ticks, nil
}

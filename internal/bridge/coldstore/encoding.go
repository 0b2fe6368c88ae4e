package coldstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fencio-dev/prism/internal/bridge/domain"
	"github.com/fencio-dev/prism/internal/bridge/errs"
)

// anchorBlockSize is the fixed encoded byte size of one RuleVector: four
// slots, each MaxAnchorsPerSlot*SlotWidth float32s plus a u64 count.
const anchorBlockSize = 4 * (domain.MaxAnchorsPerSlot*domain.SlotWidth*4 + 8)

// encodeRuleVector matches the same four-repetitions-of
// [16x32 f32 LE, u64 count] layout that warmstore uses for entries
// since both tiers hold the identical anchor block value.
func encodeRuleVector(v domain.RuleVector) []byte {
	buf := make([]byte, 0, anchorBlockSize)
	for _, slot := range []domain.AnchorSlot{v.Action, v.Resource, v.Data, v.Risk} {
		var f [4]byte
		for _, row := range slot.Anchors {
			for _, val := range row {
				binary.LittleEndian.PutUint32(f[:], math.Float32bits(val))
				buf = append(buf, f[:]...)
			}
		}
		var c [8]byte
		binary.LittleEndian.PutUint64(c[:], uint64(slot.Count))
		buf = append(buf, c[:]...)
	}
	return buf
}

func decodeRuleVector(data []byte) (domain.RuleVector, error) {
	if len(data) != anchorBlockSize {
		return domain.RuleVector{}, errs.New(errs.KindSerialization, fmt.Sprintf("cold storage value has %d bytes, expected %d", len(data), anchorBlockSize))
	}
	var v domain.RuleVector
	offset := 0
	for _, slot := range []*domain.AnchorSlot{&v.Action, &v.Resource, &v.Data, &v.Risk} {
		for i := 0; i < domain.MaxAnchorsPerSlot; i++ {
			for j := 0; j < domain.SlotWidth; j++ {
				bits := binary.LittleEndian.Uint32(data[offset : offset+4])
				slot.Anchors[i][j] = math.Float32frombits(bits)
				offset += 4
			}
		}
		count := binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
		if count > domain.MaxAnchorsPerSlot {
			return domain.RuleVector{}, errs.New(errs.KindSerialization, fmt.Sprintf("anchor count %d exceeds max %d", count, domain.MaxAnchorsPerSlot))
		}
		slot.Count = int(count)
	}
	return v, nil
}

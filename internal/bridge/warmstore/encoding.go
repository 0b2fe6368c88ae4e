package warmstore

import (
	"encoding/binary"
	"fmt"

	"github.com/fencio-dev/prism/internal/bridge/domain"
	"github.com/fencio-dev/prism/internal/bridge/errs"
)

// magic and fileVersion identify the warm-storage file format.
const (
	magic       = "GUAR"
	fileVersion = uint32(1)

	// headerWidth is the padded-content width of the metadata line, before
	// the trailing LF. Content + LF together occupy headerRecordSize
	// bytes, which is also the offset of the first entry.
	headerWidth      = 199
	headerRecordSize = headerWidth + 1
)

// encodeHeader renders the metadata record: a JSON-like text line padded
// with spaces to headerWidth bytes, followed by a single LF.
func encodeHeader(indexOffset uint64) []byte {
	body := fmt.Sprintf(`{"magic":"%s","version":%d,"index_offset":%d}`, magic, fileVersion, indexOffset)
	if len(body) > headerWidth {
		// Cannot happen for any realistic index_offset (20-digit max); guard
		// against silently truncating a malformed header.
		panic("warmstore: metadata header exceeds padded width")
	}
	buf := make([]byte, headerRecordSize)
	copy(buf, body)
	for i := len(body); i < headerWidth; i++ {
		buf[i] = ' '
	}
	buf[headerWidth] = '\n'
	return buf
}

// decodeHeader parses the metadata record and returns the index offset.
func decodeHeader(b []byte) (uint64, error) {
	if len(b) < headerRecordSize {
		return 0, errs.New(errs.KindConfig, "warm storage file too small for header")
	}
	line := b[:headerRecordSize]
	if line[headerRecordSize-1] != '\n' {
		return 0, errs.New(errs.KindConfig, "warm storage header missing trailing newline")
	}
	var gotMagic string
	var gotVersion uint32
	var indexOffset uint64
	// Parse the small fixed JSON-like object by hand; avoids pulling in a
	// JSON decoder for a three-field, always-well-formed record we write
	// ourselves.
	n, err := fmt.Sscanf(string(line), `{"magic":"%4s","version":%d,"index_offset":%d}`, &gotMagic, &gotVersion, &indexOffset)
	if err != nil || n != 3 {
		return 0, errs.Wrap(errs.KindConfig, "failed to parse warm storage header", err)
	}
	if gotMagic != magic {
		return 0, errs.New(errs.KindConfig, fmt.Sprintf("bad magic: %q", gotMagic))
	}
	if gotVersion != fileVersion {
		return 0, errs.New(errs.KindConfig, fmt.Sprintf("unsupported warm storage version: %d", gotVersion))
	}
	return indexOffset, nil
}

// encodeEntry encodes one (rule_id, RuleVector) entry: a u32-length-prefixed
// rule_id followed by the anchor block.
func encodeEntry(ruleId string, v domain.RuleVector) []byte {
	idBytes := []byte(ruleId)
	buf := make([]byte, 0, 4+len(idBytes)+entryAnchorSize())
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(idBytes)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, idBytes...)
	buf = append(buf, encodeRuleVector(v)...)
	return buf
}

// entryAnchorSize is the fixed byte size of one encoded RuleVector.
func entryAnchorSize() int {
	perSlot := domain.MaxAnchorsPerSlot*domain.SlotWidth*4 + 8 // floats + u64 count
	return perSlot * 4
}

func encodeRuleVector(v domain.RuleVector) []byte {
	buf := make([]byte, 0, entryAnchorSize())
	for _, slot := range []domain.AnchorSlot{v.Action, v.Resource, v.Data, v.Risk} {
		buf = appendSlot(buf, slot)
	}
	return buf
}

func appendSlot(buf []byte, slot domain.AnchorSlot) []byte {
	var f [4]byte
	for _, row := range slot.Anchors {
		for _, val := range row {
			binary.LittleEndian.PutUint32(f[:], float32bits(val))
			buf = append(buf, f[:]...)
		}
	}
	var c [8]byte
	binary.LittleEndian.PutUint64(c[:], uint64(slot.Count))
	buf = append(buf, c[:]...)
	return buf
}

// decodeEntryAt decodes the (rule_id, RuleVector) entry starting at
// offset within data.
func decodeEntryAt(data []byte, offset uint64) (string, domain.RuleVector, error) {
	if offset+4 > uint64(len(data)) {
		return "", domain.RuleVector{}, errs.New(errs.KindSerialization, "entry offset out of range")
	}
	idLen := binary.LittleEndian.Uint32(data[offset : offset+4])
	start := offset + 4
	end := start + uint64(idLen)
	if end > uint64(len(data)) {
		return "", domain.RuleVector{}, errs.New(errs.KindSerialization, "rule_id length out of range")
	}
	ruleId := string(data[start:end])

	vecStart := end
	vecEnd := vecStart + uint64(entryAnchorSize())
	if vecEnd > uint64(len(data)) {
		return "", domain.RuleVector{}, errs.New(errs.KindSerialization, "anchor block out of range")
	}
	v, err := decodeRuleVector(data[vecStart:vecEnd])
	if err != nil {
		return "", domain.RuleVector{}, err
	}
	return ruleId, v, nil
}

func decodeRuleVector(data []byte) (domain.RuleVector, error) {
	var v domain.RuleVector
	slots := []*domain.AnchorSlot{&v.Action, &v.Resource, &v.Data, &v.Risk}
	offset := 0
	for _, s := range slots {
		n, err := decodeSlot(data[offset:], s)
		if err != nil {
			return domain.RuleVector{}, err
		}
		offset += n
	}
	return v, nil
}

func decodeSlot(data []byte, out *domain.AnchorSlot) (int, error) {
	const matrixSize = domain.MaxAnchorsPerSlot * domain.SlotWidth * 4
	if len(data) < matrixSize+8 {
		return 0, errs.New(errs.KindSerialization, "truncated anchor slot")
	}
	offset := 0
	for i := 0; i < domain.MaxAnchorsPerSlot; i++ {
		for j := 0; j < domain.SlotWidth; j++ {
			bits := binary.LittleEndian.Uint32(data[offset : offset+4])
			out.Anchors[i][j] = float32frombits(bits)
			offset += 4
		}
	}
	count := binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8
	if count > domain.MaxAnchorsPerSlot {
		return 0, errs.New(errs.KindSerialization, fmt.Sprintf("anchor count %d exceeds max %d", count, domain.MaxAnchorsPerSlot))
	}
	out.Count = int(count)
	return offset, nil
}

// encodeIndex serializes the rule_id -> offset map: a u64 entry count
// followed by u32-length-prefixed keys and u64 offsets.
func encodeIndex(index map[string]uint64) []byte {
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(index)))
	buf := append([]byte{}, countBuf[:]...)

	for ruleId, offset := range index {
		idBytes := []byte(ruleId)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(idBytes)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, idBytes...)
		var offBuf [8]byte
		binary.LittleEndian.PutUint64(offBuf[:], offset)
		buf = append(buf, offBuf[:]...)
	}
	return buf
}

// decodeIndex parses the index region produced by encodeIndex.
func decodeIndex(data []byte) (map[string]uint64, error) {
	if len(data) < 8 {
		return nil, errs.New(errs.KindSerialization, "truncated index count")
	}
	count := binary.LittleEndian.Uint64(data[:8])
	offset := 8
	index := make(map[string]uint64, count)
	for i := uint64(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, errs.New(errs.KindSerialization, "truncated index key length")
		}
		keyLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if offset+keyLen+8 > len(data) {
			return nil, errs.New(errs.KindSerialization, "truncated index entry")
		}
		key := string(data[offset : offset+keyLen])
		offset += keyLen
		off := binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
		index[key] = off
	}
	return index, nil
}

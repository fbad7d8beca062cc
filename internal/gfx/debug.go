package gfx

import "fmt"

// naluTypeName maps an H.264 NAL unit type nibble to a short diagnostic
// label. Only the types this encoder actually emits or might see from a
// misbehaving backend are named; anything else falls back to its numeric
// value.
func naluTypeName(nalType byte) string {
	switch nalType {
	case 1:
		return "non-idr-slice"
	case 5:
		return "idr-slice"
	case 6:
		return "sei"
	case 7:
		return "sps"
	case 8:
		return "pps"
	case 9:
		return "aud"
	default:
		return fmt.Sprintf("type-%d", nalType)
	}
}

// DescribeNALUs walks an Annex-B (start-code delimited) buffer of H.264 NAL
// units and returns a short human-readable summary, useful for logging an
// encoder session's output shape without dumping raw bytes. AVC
// length-prefixed input is not parsed; it is reported as having no start
// codes.
func DescribeNALUs(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}

	units := splitAnnexB(data)
	if len(units) == 0 {
		return fmt.Sprintf("%d bytes, no start codes found", len(data))
	}

	summary := ""
	for i, u := range units {
		if len(u) == 0 {
			continue
		}
		if i > 0 {
			summary += ","
		}
		summary += fmt.Sprintf("%s(%dB)", naluTypeName(u[0]&0x1f), len(u))
	}
	return summary
}

// splitAnnexB splits a buffer on 00 00 00 01 / 00 00 01 start codes. It is a
// diagnostics-only helper, not a decoder: malformed input just yields fewer
// units than expected rather than an error.
func splitAnnexB(data []byte) [][]byte {
	var starts []int
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i+3)
		} else if i+3 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 1 {
			starts = append(starts, i+4)
		}
	}
	if len(starts) == 0 {
		return nil
	}

	units := make([][]byte, 0, len(starts))
	for i, s := range starts {
		end := len(data)
		if i+1 < len(starts) {
			// Back off past the next unit's start code prefix.
			end = starts[i+1] - 3
			if end > 0 && data[end-1] == 0 {
				end--
			}
		}
		if end > s {
			units = append(units, data[s:end])
		}
	}
	return units
}

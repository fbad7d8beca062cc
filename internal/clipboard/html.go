package clipboard

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeHTML wraps fragment in the CF_HTML envelope: a header of
// byte-offset markers followed by the HTML itself between the required
// StartFragment/EndFragment comments. Offsets are computed in two passes
// since the header's own length depends on the offsets it describes.
func EncodeHTML(fragment string) string {
	const tmpl = "Version:0.9\r\n" +
		"StartHTML:%09d\r\n" +
		"EndHTML:%09d\r\n" +
		"StartFragment:%09d\r\n" +
		"EndFragment:%09d\r\n"

	body := "<!--StartFragment-->" + fragment + "<!--EndFragment-->"

	// First pass with placeholder zeros to learn the header length.
	headerLen := len(fmt.Sprintf(tmpl, 0, 0, 0, 0))
	startHTML := headerLen
	startFragment := startHTML + len("<!--StartFragment-->")
	endFragment := startFragment + len(fragment)
	endHTML := startHTML + len(body)

	header := fmt.Sprintf(tmpl, startHTML, endHTML, startFragment, endFragment)
	return header + body
}

// DecodeHTML extracts the fragment between the StartFragment/EndFragment
// markers using the header's declared offsets, falling back to the HTML
// comment markers if the offsets are missing or inconsistent.
func DecodeHTML(data string) (string, error) {
	offsets, err := parseHTMLHeader(data)
	if err == nil && offsets.startFragment >= 0 && offsets.endFragment <= len(data) && offsets.startFragment <= offsets.endFragment {
		return data[offsets.startFragment:offsets.endFragment], nil
	}

	const startMarker = "<!--StartFragment-->"
	const endMarker = "<!--EndFragment-->"
	si := strings.Index(data, startMarker)
	ei := strings.Index(data, endMarker)
	if si < 0 || ei < 0 || ei < si {
		return "", fmt.Errorf("clipboard: CF_HTML payload missing fragment markers")
	}
	return data[si+len(startMarker) : ei], nil
}

type htmlOffsets struct {
	startFragment, endFragment int
}

func parseHTMLHeader(data string) (htmlOffsets, error) {
	o := htmlOffsets{startFragment: -1, endFragment: -1}

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || line[0] == '<' {
			break
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		switch key {
		case "StartFragment":
			o.startFragment = n
		case "EndFragment":
			o.endFragment = n
		}
	}
	if o.startFragment < 0 || o.endFragment < 0 {
		return o, fmt.Errorf("clipboard: CF_HTML header missing fragment offsets")
	}
	return o, nil
}

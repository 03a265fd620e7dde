package dlna

import (
	"encoding/xml"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/aspromise/ktv-casting/internal/core"
)

const (
	videoItemClass    = "object.item.videoItem"
	videoProtocolInfo = "http-get:*:video/mp4:*"
)

// didlLite is the DIDL-Lite document sent as CurrentURIMetaData.
type didlLite struct {
	XMLName xml.Name `xml:"DIDL-Lite"`
	NS      string   `xml:"xmlns,attr"`
	DC      string   `xml:"xmlns:dc,attr"`
	UPnP    string   `xml:"xmlns:upnp,attr"`
	Item    didlItem `xml:"item"`
}

type didlItem struct {
	ID         string  `xml:"id,attr"`
	ParentID   string  `xml:"parentID,attr"`
	Restricted string  `xml:"restricted,attr"`
	Title      string  `xml:"dc:title"`
	Class      string  `xml:"upnp:class"`
	Res        didlRes `xml:"res"`
}

type didlRes struct {
	ProtocolInfo string `xml:"protocolInfo,attr"`
	Duration     string `xml:"duration,attr,omitempty"`
	URL          string `xml:",chardata"`
}

// BuildMetadata renders the minimal DIDL-Lite description of a track.
func BuildMetadata(track core.Track) (string, error) {
	id := track.ID
	if id == "" {
		id = "0"
	}
	doc := didlLite{
		NS:   "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/",
		DC:   "http://purl.org/dc/elements/1.1/",
		UPnP: "urn:schemas-upnp-org:metadata-1-0/upnp/",
		Item: didlItem{
			ID:         id,
			ParentID:   "-1",
			Restricted: "1",
			Title:      track.DisplayTitle(),
			Class:      videoItemClass,
			Res: didlRes{
				ProtocolInfo: videoProtocolInfo,
				URL:          track.URL,
			},
		},
	}
	if track.Duration > 0 {
		doc.Item.Res.Duration = formatDuration(track.Duration)
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(out), nil
}

// metadataTitle extracts dc:title from renderer-reported metadata.
func metadataTitle(metadata string) string {
	if metadata == "" || metadata == "NOT_IMPLEMENTED" {
		return ""
	}
	return extractXMLElement(html.UnescapeString(metadata), "title")
}

var elementPatterns = map[string]*regexp.Regexp{
	"title": regexp.MustCompile(`<(?:\w+:)?title[^>]*>([^<]*)</(?:\w+:)?title>`),
}

// extractXMLElement extracts content from an XML element, ignoring namespace prefixes.
func extractXMLElement(doc, localName string) string {
	re, ok := elementPatterns[localName]
	if !ok {
		re = regexp.MustCompile(`<(?:\w+:)?` + localName + `[^>]*>([^<]*)</(?:\w+:)?` + localName + `>`)
	}
	matches := re.FindStringSubmatch(doc)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// formatDuration formats a duration as H:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// parseDuration parses a H:MM:SS[.fff] time. Renderers report unknown
// times as NOT_IMPLEMENTED or 0:00:00; both yield false.
func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "NOT_IMPLEMENTED" {
		return 0, false
	}

	var h, m int
	var sec float64
	if _, err := fmt.Sscanf(s, "%d:%d:%f", &h, &m, &sec); err != nil {
		return 0, false
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
	if d <= 0 {
		return 0, false
	}
	return d, true
}

package ingest

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Ordered heuristics for pulling one media URL out of a vendor HTML page.
// Vendor download pages vary wildly; each rule covers a shape observed in
// the wild, and the first hit wins.
var (
	jsonLDMediaRe = regexp.MustCompile(`(?i)(https?:\\?/\\?/[^"']+?\.(?:jpg|jpeg|png|webp|mp4|webm|mov))`)
	directMediaRe = regexp.MustCompile(`(?i)https?://[^"'\s>]+/(?:qrimage|qr_image|common)/[^"'\s>]+\.(?:jpg|jpeg|png|webp)`)
	encodedPathRe = regexp.MustCompile(`(?i)(/?image\?url=[^"'\s>]+)`)
)

const downloadAnchorSelector = "a[download], a[href*='download'], a.btn-download, a#download, a.button, " +
	"a[href$='.jpg'], a[href$='.jpeg'], a[href$='.png'], a[href$='.webp'], " +
	"a[href$='.mp4'], a[href$='.webm'], a[href$='.mov']"

// extractMediaURL applies the heuristics in order and returns the first
// candidate, resolved against base. Candidates pointing back at the page
// itself are discarded.
func extractMediaURL(html []byte, base *url.URL) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", false
	}

	found := ""

	// 1) Download links first.
	if sel := doc.Find(downloadAnchorSelector).First(); sel.Length() > 0 {
		found = attrResolved(base, sel, "href")
	}

	// 2) picture > source[srcset], JPEG preferred.
	if found == "" {
		sel := doc.Find("picture source[type*='jpeg'][srcset], picture source[type*='jpg'][srcset]").First()
		if sel.Length() == 0 {
			sel = doc.Find("picture source[srcset]").First()
		}
		if sel.Length() > 0 {
			found = pickBestFromSrcset(sel.AttrOr("srcset", ""), base)
		}
	}

	// 3) img[srcset].
	if found == "" {
		if sel := doc.Find("img[srcset]").First(); sel.Length() > 0 {
			found = pickBestFromSrcset(sel.AttrOr("srcset", ""), base)
		}
	}

	// 4) Media URLs inside JSON-LD blocks; longest match wins so partial
	// prefixes never shadow the full URL.
	if found == "" {
		doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if u := longestJSONLDMedia(s.Text()); u != "" {
				found = u
				return false
			}
			return true
		})
	}

	// 5) video poster / source.
	if found == "" {
		if sel := doc.Find("video[poster]").First(); sel.Length() > 0 {
			found = attrResolved(base, sel, "poster")
		}
		if found == "" {
			if sel := doc.Find("video source[src]").First(); sel.Length() > 0 {
				found = attrResolved(base, sel, "src")
			}
		}
	}

	// 6) og:image and friends.
	if found == "" {
		sel := doc.Find("meta[property='og:image'], meta[name='og:image'], meta[itemprop='image']").First()
		if sel.Length() > 0 {
			found = contentResolved(base, sel)
		}
	}

	// 7) Any img[src].
	if found == "" {
		if sel := doc.Find("img[src]").First(); sel.Length() > 0 {
			found = attrResolved(base, sel, "src")
		}
	}

	// 8) Raw scans of the document for object-storage media paths and, on
	// known vendor HTML, the encoded image?url= redirect form.
	if found == "" {
		found = scanRawHTML(html, base)
	}

	if found == "" || samePage(found, base.String()) {
		return "", false
	}
	return found, true
}

func scanRawHTML(html []byte, base *url.URL) string {
	text := string(html)
	lowerHTML := strings.ToLower(text)
	lowerBase := strings.ToLower(base.String())
	vendorPage := strings.Contains(lowerHTML, "life4cut") || strings.Contains(lowerBase, "life4cut")

	for _, candidate := range directMediaRe.FindAllString(text, -1) {
		if !vendorPage || strings.Contains(strings.ToLower(candidate), "/qrimage/") {
			return candidate
		}
	}

	if vendorPage {
		if m := encodedPathRe.FindStringSubmatch(text); m != nil {
			if resolved, err := resolveRef(base, m[1]); err == nil {
				return resolved
			}
		}
	}
	return ""
}

// pickBestFromSrcset picks the srcset entry with the largest declared
// width, resolved against base.
func pickBestFromSrcset(srcset string, base *url.URL) string {
	if strings.TrimSpace(srcset) == "" {
		return ""
	}
	bestW := -1
	bestURL := ""
	for _, part := range strings.Split(srcset, ",") {
		tok := strings.Fields(strings.TrimSpace(part))
		if len(tok) == 0 {
			continue
		}
		w := -1
		if len(tok) > 1 && strings.HasSuffix(tok[1], "w") {
			if parsed, err := strconv.Atoi(strings.TrimSuffix(tok[1], "w")); err == nil {
				w = parsed
			}
		}
		if w > bestW {
			bestW = w
			bestURL = tok[0]
		}
	}
	if bestURL == "" {
		return ""
	}
	if resolved, err := resolveRef(base, bestURL); err == nil {
		return resolved
	}
	return bestURL
}

func longestJSONLDMedia(blob string) string {
	best := ""
	for _, m := range jsonLDMediaRe.FindAllString(blob, -1) {
		u := strings.ReplaceAll(m, `\/`, "/")
		if len(u) > len(best) {
			best = u
		}
	}
	return best
}

func attrResolved(base *url.URL, sel *goquery.Selection, attr string) string {
	val, ok := sel.Attr(attr)
	if !ok || strings.TrimSpace(val) == "" {
		return ""
	}
	if resolved, err := resolveRef(base, val); err == nil {
		return resolved
	}
	return ""
}

func contentResolved(base *url.URL, sel *goquery.Selection) string {
	val, ok := sel.Attr("content")
	if !ok || strings.TrimSpace(val) == "" {
		return ""
	}
	if resolved, err := resolveRef(base, val); err == nil {
		return resolved
	}
	return ""
}

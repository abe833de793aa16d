package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/session"
	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/pkg/types"
)

var challengeMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("cf-challenge"),
	[]byte("are you a robot"),
	[]byte("unusual traffic"),
	[]byte("request unsuccessful. incapsula"),
	[]byte("access denied"),
}

// ContainsChallengeMarker scans a body for the usual CAPTCHA/challenge
// fingerprints.
func ContainsChallengeMarker(body []byte) bool {
	lowered := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// HiddenInput extracts the value of a hidden form field, the bread and
// butter of WebForms state tokens (__VIEWSTATE and friends).
func HiddenInput(name string) session.TokenExtractor {
	selector := fmt.Sprintf("input[name=%q]", name)
	return func(body []byte) (string, bool) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return "", false
		}
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			return "", false
		}
		value, ok := sel.Attr("value")
		return value, ok
	}
}

// RegexToken extracts the first capture group of pattern.
func RegexToken(pattern string) session.TokenExtractor {
	re := regexp.MustCompile(pattern)
	return func(body []byte) (string, bool) {
		m := re.FindSubmatch(body)
		if len(m) < 2 {
			return "", false
		}
		return string(m[1]), true
	}
}

// CountPattern builds a result-count extractor from a regex whose first
// capture group is the integer total (e.g. `of\s+([\d,]+)\s+results`).
func CountPattern(pattern string) func(body []byte) (int, bool) {
	re := regexp.MustCompile(pattern)
	return func(body []byte) (int, bool) {
		m := re.FindSubmatch(body)
		if len(m) < 2 {
			return 0, false
		}
		raw := strings.ReplaceAll(string(m[1]), ",", "")
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
}

// TableRows builds an extractor walking table rows: rowSelector picks the
// rows, cells maps raw keys to a cell selector within each row. Cell values
// are the selection's trimmed text; anchors additionally contribute their
// resolved href under key+"_url".
func TableRows(rowSelector string, cells map[string]string) Extractor {
	return Extractor{
		Name: "table:" + rowSelector,
		Run: func(base *url.URL, body []byte) ([]types.RawRecord, error) {
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("parse html: %w", err)
			}

			var records []types.RawRecord
			doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
				rec := types.RawRecord{}
				for key, cellSel := range cells {
					cell := row.Find(cellSel)
					if cell.Length() == 0 {
						continue
					}
					rec.Add(key, strings.TrimSpace(cell.First().Text()))
					if href, ok := cell.First().Attr("href"); ok {
						rec.Add(key+"_url", resolveHref(base, href))
					} else if href, ok := cell.Find("a[href]").First().Attr("href"); ok {
						rec.Add(key+"_url", resolveHref(base, href))
					}
				}
				if len(rec) > 0 {
					records = append(records, rec)
				}
			})
			return records, nil
		},
	}
}

// Cards builds an extractor for card/list layouts: cardSelector picks each
// result container, fields maps raw keys to selectors inside the card.
func Cards(cardSelector string, fields map[string]string) Extractor {
	return Extractor{
		Name: "cards:" + cardSelector,
		Run: func(base *url.URL, body []byte) ([]types.RawRecord, error) {
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("parse html: %w", err)
			}

			var records []types.RawRecord
			doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
				rec := types.RawRecord{}
				for key, sel := range fields {
					card.Find(sel).Each(func(_ int, s *goquery.Selection) {
						rec.Add(key, strings.TrimSpace(s.Text()))
						if href, ok := s.Attr("href"); ok {
							rec.Add(key+"_url", resolveHref(base, href))
						}
					})
				}
				if len(rec) > 0 {
					records = append(records, rec)
				}
			})
			return records, nil
		},
	}
}

// LinkScan is the generic last-resort extractor: every anchor whose href
// matches pattern becomes a record with the anchor text as full name and
// the resolved href as profile URL.
func LinkScan(pattern string) Extractor {
	re := regexp.MustCompile(pattern)
	return Extractor{
		Name: "linkscan:" + pattern,
		Run: func(base *url.URL, body []byte) ([]types.RawRecord, error) {
			root, err := html.Parse(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("parse html: %w", err)
			}

			var records []types.RawRecord
			var walk func(n *html.Node)
			walk = func(n *html.Node) {
				if n.Type == html.ElementNode && n.Data == "a" {
					if href := nodeAttr(n, "href"); href != "" && re.MatchString(href) {
						if name := strings.TrimSpace(nodeText(n)); name != "" {
							rec := types.RawRecord{}
							rec.Add(FieldFullName, name)
							rec.Add(FieldProfileURL, resolveHref(base, href))
							records = append(records, rec)
						}
					}
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
			}
			walk(root)
			return records, nil
		},
	}
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// JSONList builds an extractor for ad hoc JSON backends: it decodes a list
// of flat objects found at key (or the top level when key is empty) and
// stringifies every scalar field. Useful as a probe chain against
// single-page-app APIs whose contract is unknown.
func JSONList(key string) Extractor {
	name := "json"
	if key != "" {
		name = "json:" + key
	}
	return Extractor{
		Name: name,
		Run: func(_ *url.URL, body []byte) ([]types.RawRecord, error) {
			var root any
			if err := json.Unmarshal(body, &root); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
			if key != "" {
				obj, ok := root.(map[string]any)
				if !ok {
					return nil, nil
				}
				root = obj[key]
			}
			list, ok := root.([]any)
			if !ok {
				return nil, nil
			}

			var records []types.RawRecord
			for _, item := range list {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				rec := types.RawRecord{}
				for k, v := range obj {
					switch val := v.(type) {
					case string:
						rec.Add(k, val)
					case float64:
						rec.Add(k, strconv.FormatFloat(val, 'f', -1, 64))
					case bool:
						rec.Add(k, strconv.FormatBool(val))
					case []any:
						for _, item := range val {
							if s, ok := item.(string); ok {
								rec.Add(k, s)
							}
						}
					}
				}
				if len(rec) > 0 {
					records = append(records, rec)
				}
			}
			return records, nil
		},
	}
}

// PostbackLinks builds a Token-strategy link-finder matching WebForms
// __doPostBack hrefs whose event target matches targetPattern. A "Page$Next"
// control wins outright; otherwise the current page is inferred from the
// pager, which renders every page except the current one as a link, and the
// successor page's control is returned when present.
func PostbackLinks(targetPattern string) func(body []byte) (Postback, bool) {
	re := regexp.MustCompile(`__doPostBack\('([^']+)'\s*,\s*'([^']*)'\)`)
	targetRe := regexp.MustCompile(targetPattern)
	return func(body []byte) (Postback, bool) {
		pages := map[int]Postback{}
		for _, m := range re.FindAllSubmatch(body, -1) {
			target, arg := string(m[1]), string(m[2])
			if !targetRe.MatchString(target) {
				continue
			}
			if arg == "Page$Next" {
				return Postback{Target: target, Argument: arg}, true
			}
			num, ok := strings.CutPrefix(arg, "Page$")
			if !ok {
				continue
			}
			n, err := strconv.Atoi(num)
			if err != nil || n <= 0 {
				continue
			}
			pages[n] = Postback{Target: target, Argument: arg}
		}

		current := 1
		for {
			if _, linked := pages[current]; !linked {
				break
			}
			current++
		}
		pb, ok := pages[current+1]
		return pb, ok
	}
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	return u.String()
}

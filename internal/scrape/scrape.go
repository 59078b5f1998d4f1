// Package scrape reads standings and fixtures from federation result pages.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/league"
)

// Page is everything read from one result page.
type Page struct {
	Teams   []league.Team
	Fixture []league.Match
	// Skipped counts fixture rows whose score could not be read.
	Skipped int
}

// Played returns the matches of the page that have a result.
func (p *Page) Played() []league.Match {
	var out []league.Match
	for _, m := range p.Fixture {
		if m.IsPlayed {
			out = append(out, m)
		}
	}
	return out
}

type Fetcher struct {
	Client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads url and parses it. group names the group when the page
// does not carry one per row.
func (f *Fetcher) Fetch(ctx context.Context, url, group string) (*Page, error) {
	logger := log.Ctx(ctx).With().Str("url", url).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 status code: %d %s", resp.StatusCode, resp.Status)
	}

	page, err := Parse(resp.Body, group)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Int("teams", len(page.Teams)).
		Int("matches", len(page.Fixture)).
		Int("skipped", page.Skipped).
		Msg("Scraped result page")
	return page, nil
}

var dottedDate = regexp.MustCompile(`^(\d{2})[./](\d{2})[./](\d{4})$`)

// Parse reads a result page. Two layouts are understood: the federation
// page whose cells carry generated ids (_gevsahibi_, _gseta_, ...) and a
// plain table.fixture with date | group | home | score | away columns.
func Parse(r io.Reader, group string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML content: %w", err)
	}

	page := &Page{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if name := cellText(row, "_gtakimadi_"); name != "" {
			page.Teams = append(page.Teams, league.Team{
				Name:      name,
				GroupName: group,
				Played:    cellInt(row, "_gO_"),
				Wins:      cellInt(row, "_gG_"),
				Points:    cellInt(row, "_gP_"),
				SetsWon:   cellInt(row, "_gA_"),
				SetsLost:  cellInt(row, "_gV_"),
			})
		}
	})

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		home, away := cellText(row, "_gevsahibi_"), cellText(row, "_gmisafir_")
		if home == "" || away == "" {
			return
		}
		m := league.Match{HomeTeam: home, AwayTeam: away, GroupName: group}
		m.MatchDate = normalizeDate(firstNonEmpty(
			cellText(row, "_gtarih_"), cellText(row, "_gTarih_"), cellText(row, "_lTarih_"),
		))
		hs := firstNonEmpty(cellText(row, "_gseta_"), cellText(row, "_gSonucA_"), cellText(row, "_lSeta_"))
		as := firstNonEmpty(cellText(row, "_gsetb_"), cellText(row, "_gSonucB_"), cellText(row, "_lSetb_"))
		page.addResult(m, hs, as)
	})

	doc.Find("table.fixture tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}
		text := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }
		m := league.Match{
			MatchDate: normalizeDate(text(0)),
			GroupName: text(1),
			HomeTeam:  text(2),
			AwayTeam:  text(4),
		}
		if m.GroupName == "" {
			m.GroupName = group
		}
		if m.HomeTeam == "" || m.AwayTeam == "" {
			return
		}
		hs, as, _ := strings.Cut(text(3), "-")
		page.addResult(m, hs, as)
	})

	return page, nil
}

// addResult marks m as played when both set counts are present and form a
// valid score. Rows without a score are kept as upcoming fixtures.
func (p *Page) addResult(m league.Match, homeSets, awaySets string) {
	homeSets, awaySets = strings.TrimSpace(homeSets), strings.TrimSpace(awaySets)
	if homeSets == "" || awaySets == "" || homeSets == "-" {
		p.Fixture = append(p.Fixture, m)
		return
	}
	h, errH := strconv.Atoi(homeSets)
	a, errA := strconv.Atoi(awaySets)
	if errH != nil || errA != nil {
		p.Skipped++
		return
	}
	if h == 0 && a == 0 {
		p.Fixture = append(p.Fixture, m)
		return
	}
	o, err := league.NewOutcome(h, a)
	if err != nil {
		p.Skipped++
		return
	}
	m.IsPlayed = true
	m.ResultScore = o.String()
	p.Fixture = append(p.Fixture, m)
}

func cellText(row *goquery.Selection, idPart string) string {
	return strings.TrimSpace(row.Find(`[id*="` + idPart + `"]`).First().Text())
}

func cellInt(row *goquery.Selection, idPart string) int {
	n, _ := strconv.Atoi(cellText(row, idPart))
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizeDate turns dd.mm.yyyy into yyyy-mm-dd and leaves other input alone.
func normalizeDate(s string) string {
	if m := dottedDate.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return s
}

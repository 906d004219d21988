// Package market defines the domain model for short-lived up/down
// markets: one Instance per 15-minute window, with merged YES/NO
// price snapshots.
package market

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Lifetime is the nominal lifetime of an up/down market window.
const Lifetime = 15 * time.Minute

var slugRe = regexp.MustCompile(`^(btc|eth|sol|xrp)-updown-15m-(\d+)$`)

// Instance identifies one market window on one underlying. It is
// immutable; a fresh position state machine is created per Instance.
type Instance struct {
	Slug       string
	Asset      string
	Epoch      int64 // unix seconds of the window open, 15-minute aligned
	YesTokenID string
	NoTokenID  string
}

// Expiry returns the settlement time of the window.
func (i Instance) Expiry() time.Time {
	return time.Unix(i.Epoch, 0).UTC().Add(Lifetime)
}

// OpenTime returns the start of the window.
func (i Instance) OpenTime() time.Time {
	return time.Unix(i.Epoch, 0).UTC()
}

// ParseSlug extracts asset and epoch from an up/down market slug such
// as "btc-updown-15m-1765988100".
func ParseSlug(slug string) (asset string, epoch int64, err error) {
	m := slugRe.FindStringSubmatch(slug)
	if m == nil {
		return "", 0, fmt.Errorf("not an up/down 15m slug: %q", slug)
	}
	epoch, err = strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("couldn't parse epoch in slug %q: %w", slug, err)
	}
	if epoch%900 != 0 {
		return "", 0, fmt.Errorf("epoch %d in slug %q is not 15-minute aligned", epoch, slug)
	}
	return m[1], epoch, nil
}

// Slug builds the canonical slug for an asset and window epoch.
func Slug(asset string, epoch int64) string {
	return fmt.Sprintf("%s-updown-15m-%d", asset, epoch)
}

// Snapshot is one observation of both sides of a market. Snapshots are
// ordered by Time, with Seq breaking ties, and are immutable once
// observed.
type Snapshot struct {
	Time     time.Time
	Seq      int64
	Yes      float64
	No       float64
	Resolved bool // explicit resolution event from the feed
}

// Point is a single timestamped price from one token's history.
type Point struct {
	Time  time.Time
	Price float64
}

// MergeHistories inner-joins the YES and NO token histories on
// timestamp, producing the ordered snapshot sequence the position
// state machine consumes. Both inputs must be sorted by time.
func MergeHistories(yes, no []Point) []Snapshot {
	merged := make([]Snapshot, 0, min(len(yes), len(no)))
	var seq int64

	i, j := 0, 0
	for i < len(yes) && j < len(no) {
		switch {
		case yes[i].Time.Before(no[j].Time):
			i++
		case no[j].Time.Before(yes[i].Time):
			j++
		default:
			merged = append(merged, Snapshot{
				Time: yes[i].Time,
				Seq:  seq,
				Yes:  yes[i].Price,
				No:   no[j].Price,
			})
			seq++
			i++
			j++
		}
	}
	return merged
}

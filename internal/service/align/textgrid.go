package align

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"pronunciation-practice-service/internal/models"
)

// TextGrid is a parsed Praat TextGrid in the long text format.
type TextGrid struct {
	XMin  float64
	XMax  float64
	Tiers []Tier
}

// Tier is one interval tier of a TextGrid. Point tiers are skipped.
type Tier struct {
	Class     string
	Name      string
	XMin      float64
	XMax      float64
	Intervals []models.WordInterval
}

// Tier returns the tier with the given name.
func (tg *TextGrid) Tier(name string) (Tier, bool) {
	for _, t := range tg.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

var (
	reItem     = regexp.MustCompile(`^item \[(\d+)\]:$`)
	reInterval = regexp.MustCompile(`^intervals \[(\d+)\]:?$`)
	rePoint    = regexp.MustCompile(`^points \[(\d+)\]:?$`)
	reField    = regexp.MustCompile(`^([A-Za-z]+) = (.*)$`)
)

// ErrNotTextGrid is returned when the input lacks the ooTextFile header.
var ErrNotTextGrid = errors.New("not a TextGrid file")

// ParseTextGrid reads a long-format TextGrid as written by MFA and Praat.
func ParseTextGrid(r io.Reader) (*TextGrid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	tg := &TextGrid{}
	var (
		tier     *Tier
		interval *models.WordInterval
		inPoint  bool
		header   bool
	)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !header {
			if !strings.Contains(line, "ooTextFile") {
				return nil, ErrNotTextGrid
			}
			header = true
			continue
		}

		switch {
		case reItem.MatchString(line):
			tg.Tiers = append(tg.Tiers, Tier{})
			tier = &tg.Tiers[len(tg.Tiers)-1]
			interval, inPoint = nil, false
			continue
		case reInterval.MatchString(line):
			if tier == nil {
				return nil, fmt.Errorf("textgrid: interval outside a tier")
			}
			tier.Intervals = append(tier.Intervals, models.WordInterval{})
			interval, inPoint = &tier.Intervals[len(tier.Intervals)-1], false
			continue
		case rePoint.MatchString(line):
			interval, inPoint = nil, true
			continue
		}

		m := reField.FindStringSubmatch(line)
		if m == nil || inPoint {
			continue
		}
		key, val := m[1], strings.TrimSpace(m[2])

		switch key {
		case "xmin", "xmax":
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("textgrid: bad %s %q", key, val)
			}
			setBound(tg, tier, interval, key, v)
		case "text":
			if interval != nil {
				interval.Label = unquote(val)
			}
		case "class":
			if tier != nil {
				tier.Class = unquote(val)
			}
		case "name":
			if tier != nil {
				tier.Name = unquote(val)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("textgrid: %w", err)
	}
	if !header {
		return nil, ErrNotTextGrid
	}

	// drop point tiers
	tiers := tg.Tiers[:0]
	for _, t := range tg.Tiers {
		if t.Class == "" || t.Class == "IntervalTier" {
			tiers = append(tiers, t)
		}
	}
	tg.Tiers = tiers
	return tg, nil
}

func setBound(tg *TextGrid, tier *Tier, interval *models.WordInterval, key string, v float64) {
	switch {
	case interval != nil:
		if key == "xmin" {
			interval.Start = v
		} else {
			interval.End = v
		}
	case tier != nil:
		if key == "xmin" {
			tier.XMin = v
		} else {
			tier.XMax = v
		}
	default:
		if key == "xmin" {
			tg.XMin = v
		} else {
			tg.XMax = v
		}
	}
}

// unquote strips Praat string quotes; embedded quotes are doubled.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `""`, `"`)
}

package domain

import "strings"

// maxSlugLen caps slugs so file names and store keys stay short.
const maxSlugLen = 80

// Location is a place resolved by the geocoding API. Latitude, longitude and
// timezone drive the upstream requests; the rest is display data.
type Location struct {
	Name        string
	Country     string // full country name in the geocoder's response language
	CountryCode string // ISO 3166-1 alpha-2, upper case
	Admin1      string // first-level subdivision (region), may be empty
	Latitude    float64
	Longitude   float64
	Timezone    string   // IANA name reported by the geocoder, e.g. "Europe/Paris"
	Elevation   *float64 // metres, when the geocoder reports it
}

// Label returns the human-readable "Name, Country" form used in logs and
// reports.
func (l Location) Label() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// Slug derives the deterministic identifier that keys this location's rows
// and raw payload files: "name-country" lowercased, runs of non-alphanumeric
// characters collapsed to single dashes, capped at 80 bytes. Re-ingesting the
// same place always lands on the same slug.
func (l Location) Slug() string {
	country := l.Country
	if country == "" {
		country = l.CountryCode
	}
	return Slugify(l.Name + "-" + country)
}

// Slugify reduces free text to a slug: lowercase alphanumerics with dash
// separators. Empty input slugs to "location" so a key always exists.
func Slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	pendingDash := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}
	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "location"
	}
	return slug
}

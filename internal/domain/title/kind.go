package title

import "fmt"

// Kind separates the two catalogs. Each kind has its own index and list rows.
type Kind string

const (
	// Anime is a watchable title (TV, movie, OVA, ...).
	Anime Kind = "anime"
	// Manga is a readable title (manga, manhwa, light novel, ...).
	Manga Kind = "manga"
)

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind { return []Kind{Anime, Manga} }

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k == Anime || k == Manga
}

// ParseKind converts a raw string into a Kind. An empty string defaults to Anime.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return Anime, nil
	}
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown media kind %q", s)
	}
	return k, nil
}

package title

import (
	"sort"
	"strings"
)

// ProjectionVersion identifies the embedding text layout. Bump it whenever
// Project output changes so stale records can be found and reindexed.
const ProjectionVersion = "v2"

const (
	maxSynopsisRunes = 1000
	maxTropes        = 10
)

// Record is one unit written to the embedding index.
type Record struct {
	ID       int64
	Text     string
	Metadata Metadata
}

// NewRecord projects t into an index record.
func NewRecord(t *Title) Record {
	return Record{ID: t.ID, Text: Project(t), Metadata: t.Metadata()}
}

// Project renders the deterministic embedding text for a title:
// name | english name | Genres: ... | synopsis | Scenes and tropes: ...
func Project(t *Title) string {
	parts := []string{t.Name}

	if t.EnglishName != "" && t.EnglishName != t.Name {
		parts = append(parts, t.EnglishName)
	}

	if len(t.Genres) > 0 {
		parts = append(parts, "Genres: "+t.GenreString())
	}

	if t.Synopsis != "" {
		synopsis := truncateRunes(t.Synopsis, maxSynopsisRunes)
		parts = append(parts, synopsis)

		if tropes := DetectTropes(synopsis, t.Genres); len(tropes) > 0 {
			parts = append(parts, "Scenes and tropes: "+strings.Join(tropes, ", "))
		}
	}

	return strings.Join(parts, " | ")
}

type scenePattern struct {
	name     string
	triggers []string
}

var scenePatterns = []scenePattern{
	{"confession", []string{"confess", "confession", "i love you", "feelings for", "admit feelings"}},
	{"rooftop scene", []string{"rooftop", "on the roof", "school rooftop"}},
	{"beach episode", []string{"beach", "swimsuit", "ocean", "summer vacation"}},
	{"festival date", []string{"festival", "fireworks", "yukata", "summer festival"}},
	{"accidental kiss", []string{"accidental", "lips touched", "fell on"}},

	{"training arc", []string{"training", "train harder", "become stronger", "special training"}},
	{"tournament arc", []string{"tournament", "competition", "championship", "finals"}},
	{"final battle", []string{"final battle", "last fight", "ultimate showdown", "final boss"}},
	{"power awakening", []string{"awakens", "hidden power", "true power", "unleash"}},
	{"sacrifice", []string{"sacrifice", "gave their life", "protect everyone", "died saving"}},

	{"tearful goodbye", []string{"goodbye", "farewell", "parting", "separation"}},
	{"death scene", []string{"death", "died", "killed", "passed away", "funeral"}},
	{"reunion", []string{"reunite", "reunion", "meet again", "found each other"}},
	{"flashback", []string{"flashback", "memories", "past", "childhood"}},
	{"redemption arc", []string{"redemption", "atone", "make amends", "change their ways"}},

	{"overpowered protagonist", []string{"overpowered", "strongest", "unbeatable", "one punch", "no match"}},
	{"hidden identity", []string{"secret identity", "hiding", "disguise", "true self"}},
	{"underdog story", []string{"underdog", "weakest", "looked down upon", "prove them wrong"}},
	{"transfer student", []string{"transfer student", "new student", "just arrived"}},
	{"chosen one", []string{"chosen", "prophecy", "destined", "fate"}},

	{"post-apocalyptic", []string{"apocalypse", "post-apocalyptic", "destroyed world", "ruins"}},
	{"isekai", []string{"another world", "transported", "reincarnated", "summoned to"}},
	{"time loop", []string{"time loop", "repeating", "stuck in time", "groundhog"}},
	{"school setting", []string{"high school", "academy", "school", "classroom"}},
	{"dystopian", []string{"dystopia", "oppressive", "government control", "rebellion"}},
}

var genreTropes = map[string][]string{
	"Romance": {"love triangle", "slow burn romance"},
	"Action":  {"battle scenes", "fight choreography"},
	"Comedy":  {"comedic moments", "slapstick"},
	"Drama":   {"emotional moments", "character development"},
	"Horror":  {"scary scenes", "tension building"},
	"Sports":  {"match scenes", "team dynamics"},
	"Music":   {"performance scenes", "concert"},
}

// DetectTropes returns up to 10 distinct tropes, sorted, found in the synopsis
// or implied by the genres.
func DetectTropes(synopsis string, genres []string) []string {
	if synopsis == "" {
		return nil
	}
	lower := strings.ToLower(synopsis)

	seen := make(map[string]struct{})
	for _, sp := range scenePatterns {
		for _, trigger := range sp.triggers {
			if strings.Contains(lower, trigger) {
				seen[sp.name] = struct{}{}
				break
			}
		}
	}
	for _, g := range genres {
		for _, trope := range genreTropes[g] {
			seen[trope] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for trope := range seen {
		out = append(out, trope)
	}
	sort.Strings(out)
	if len(out) > maxTropes {
		out = out[:maxTropes]
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

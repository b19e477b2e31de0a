package intent

import (
	"regexp"

	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Rule priorities. Manga rules are evaluated before anime rules.
const (
	PriorityManga = 20
	PriorityAnime = 10
)

// Rule maps one regular expression onto a list operation.
type Rule struct {
	Name     string
	Kind     title.Kind
	Priority int
	// Exclusive stops evaluation after this rule matches.
	Exclusive bool
	// Guard, when set, must match the message before Pattern is tried.
	Guard   *regexp.Regexp
	Pattern *regexp.Regexp
	// TitleGroup and ArgGroup are submatch indexes; ArgGroup 0 means no argument.
	TitleGroup  int
	ArgGroup    int
	ArgRequired bool
	Operation   domintent.Operation
	Status      list.Status
}

const (
	verbAdd    = `(?:add|mark|set|put)\s+`
	verbRate   = `(?:rate|give|score)\s+`
	verbRemove = `(?:remove|delete|take off)\s+`
	into       = `\s+(?:to|as|in)\s+(?:my\s+)?`
	listWord   = `(?:\s+list)?`
	withRating = `(?:\s+with\s+(?:a\s+)?rating\s+(?:of\s+)?(\d+(?:\.\d+)?))?`
	number     = `(\d+(?:\.\d+)?)`
	outOf      = `\s*(?:out of 10|/10|stars?)?`

	mangaInto = `\s+(?:manga\s+)?(?:to|as|in)\s+(?:my\s+)?(?:manga\s+)?`
)

// mangaGuard requires reading vocabulary so plain anime commands never hit manga rules.
var mangaGuard = regexp.MustCompile(
	`(?i)\b(?:manga|manhwa|manhua|reading|ptr)\b|plan(?:ned)?\s+to\s+read`,
)

func rx(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// DefaultRules returns the built-in anime and manga rule set.
func DefaultRules() []Rule {
	anime := func(name string, op domintent.Operation, st list.Status, pattern string, argGroup int, argRequired bool) Rule {
		return Rule{
			Name: name, Kind: title.Anime, Priority: PriorityAnime,
			Pattern: rx(pattern), TitleGroup: 1, ArgGroup: argGroup, ArgRequired: argRequired,
			Operation: op, Status: st,
		}
	}
	manga := func(name string, op domintent.Operation, st list.Status, pattern string, argGroup int, argRequired bool) Rule {
		return Rule{
			Name: name, Kind: title.Manga, Priority: PriorityManga, Exclusive: true, Guard: mangaGuard,
			Pattern: rx(pattern), TitleGroup: 1, ArgGroup: argGroup, ArgRequired: argRequired,
			Operation: op, Status: st,
		}
	}

	return []Rule{
		anime("add_completed", domintent.AddOrSetStatus, list.Completed,
			verbAdd+`(.+?)`+into+`completed`+listWord+withRating, 2, false),
		anime("add_watching", domintent.AddOrSetStatus, list.Watching,
			verbAdd+`(.+?)`+into+`(?:watching|currently watching)`+listWord, 0, false),
		anime("add_planned", domintent.AddOrSetStatus, list.Planned,
			verbAdd+`(.+?)`+into+`(?:plan(?:ned)?(?:\s+to\s+watch)?|watchlist|ptw)`+listWord, 0, false),
		anime("add_dropped", domintent.AddOrSetStatus, list.Dropped,
			verbAdd+`(.+?)`+into+`dropped`+listWord, 0, false),
		anime("add_on_hold", domintent.AddOrSetStatus, list.OnHold,
			verbAdd+`(.+?)`+into+`(?:on[\s_-]?hold|paused)`+listWord, 0, false),
		anime("rate", domintent.Rate, "",
			verbRate+`(.+?)\s+(?:a\s+)?`+number+outOf, 2, true),
		anime("change_rating", domintent.ChangeRating, "",
			`(?:change|update|set)\s+(?:the\s+)?rating\s+(?:of\s+)?(.+?)\s+to\s+`+number, 2, true),
		anime("remove", domintent.Remove, "",
			verbRemove+`(.+?)\s+(?:from\s+(?:my\s+)?(?:list|watchlist|anime list))`, 0, false),

		manga("add_manga_completed", domintent.AddOrSetStatus, list.Completed,
			verbAdd+`(.+?)`+mangaInto+`completed`+listWord+withRating, 2, false),
		manga("add_manga_reading", domintent.AddOrSetStatus, list.Watching,
			verbAdd+`(.+?)`+mangaInto+`(?:reading|currently reading)`+listWord, 0, false),
		manga("add_manga_planned", domintent.AddOrSetStatus, list.Planned,
			verbAdd+`(.+?)`+mangaInto+`(?:plan(?:ned)?(?:\s+to\s+read)?|ptr)`+listWord, 0, false),
		manga("rate_manga", domintent.Rate, "",
			verbRate+`(.+?)\s+(?:manga\s+)?(?:a\s+)?`+number+outOf, 2, true),
		manga("remove_manga", domintent.Remove, "",
			verbRemove+`(.+?)\s+(?:manga\s+)?(?:from\s+(?:my\s+)?(?:manga\s+)?(?:list|reading list))`, 0, false),
	}
}

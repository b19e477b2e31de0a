package catalog

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/animedex/internal/domain/title"
)

func TestDecode(t *testing.T) {
	input := `{"id": 1, "title": "Cowboy Bebop", "mean": 8.75, "genres": ["Action", " Sci-Fi "], "popularity": 39, "media_type": "tv"}
{"mal_id": 2, "title": "Berserk", "score": 9.4, "synopsis": "  Guts, a former mercenary...  "}
{"id": 3, "title": "   "}
{"id": 4, "title": "Broken", "score": 11}
`
	titles, rep, err := Decode(strings.NewReader(input), title.Manga)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Decoded != 2 || rep.Rejected != 2 {
		t.Errorf("report: got %+v", rep)
	}
	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(titles))
	}

	bebop := titles[0]
	if bebop.ID != 1 || bebop.Kind != title.Manga || *bebop.Score != 8.75 {
		t.Errorf("bebop: got %+v", bebop)
	}
	if len(bebop.Genres) != 2 || bebop.Genres[1] != "Sci-Fi" {
		t.Errorf("genres: got %v", bebop.Genres)
	}
	if titles[1].ID != 2 || titles[1].Synopsis != "Guts, a former mercenary..." {
		t.Errorf("berserk: got %+v", titles[1])
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := Decode(strings.NewReader("{\"id\": 1, \"title\": \"ok\"}\n{oops"), title.Anime)
	if err == nil || !strings.Contains(err.Error(), "record 2") {
		t.Errorf("expected error naming record 2, got %v", err)
	}
}

func TestDecode_InvalidKind(t *testing.T) {
	if _, _, err := Decode(strings.NewReader(""), title.Kind("novel")); err == nil {
		t.Error("expected error for invalid kind")
	}
}

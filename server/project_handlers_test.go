package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"soundscene/core/workflow"
	"soundscene/model"
)

func TestTracksViewOmitsObjectKeys(t *testing.T) {
	tracks := []model.Track{{
		ID:         "t1",
		Name:       "a.mp3",
		ObjectPath: "projects/p1/tracks/t1/a.mp3",
		URL:        "https://minio.example/signed",
	}}

	payload, err := json.Marshal(tracksView(tracks))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(payload), "objectPath") {
		t.Fatalf("object key leaked into the API payload: %s", payload)
	}
	if !strings.Contains(string(payload), "https://minio.example/signed") {
		t.Fatalf("playable URL missing from the API payload: %s", payload)
	}
}

func TestStateViewProjectsTracks(t *testing.T) {
	state := workflow.NewState(1)
	state.Tracks = []model.Track{{ID: "t1", ObjectPath: "projects/p/tracks/t1/a.mp3"}}

	payload, err := json.Marshal(stateView(state))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(payload), "objectPath") {
		t.Fatalf("object key leaked into the state view: %s", payload)
	}
}

func TestStepFromQuery(t *testing.T) {
	cases := []struct {
		query string
		step  int
		ok    bool
	}{
		{"", 0, false},
		{"step=1", 1, true},
		{"step=3", 3, true},
		{"step=4", 4, true},
		{"step=0", 0, false},
		{"step=5", 0, false},
		{"step=-1", 0, false},
		{"step=overview", 0, false},
	}
	for _, c := range cases {
		r := httptest.NewRequest("GET", "/api/projects/p1?"+c.query, nil)
		step, ok := stepFromQuery(r)
		if ok != c.ok || step != c.step {
			t.Errorf("query %q: got (%d, %v), want (%d, %v)", c.query, step, ok, c.step, c.ok)
		}
	}
}

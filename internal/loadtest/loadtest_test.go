package loadtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/oralscan/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeService confirms every other upload and serves history from memory.
// With leak set, history returns every identity's records.
type fakeService struct {
	mu      sync.Mutex
	n       int
	records map[string][]historyEntry
	leak    bool
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		w.WriteHeader(http.StatusOK)
	case "/predict":
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		identity := r.Header.Get("X-User-ID")
		f.mu.Lock()
		f.n++
		confirm := f.n%2 == 0
		resp := predictResponse{Status: "not_detected", Class: "Not detected"}
		if confirm {
			resp = predictResponse{Status: "confirmed", Class: "caries", ID: uuid.NewString()}
			f.records[identity] = append(f.records[identity], historyEntry{ID: resp.ID, Name: "caries"})
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(resp)
	case "/history":
		identity := r.URL.Query().Get("user_id")
		f.mu.Lock()
		data := append([]historyEntry{}, f.records[identity]...)
		if f.leak {
			for other, recs := range f.records {
				if other != identity {
					data = append(data, recs...)
				}
			}
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(historyResponse{Status: "success", Data: data})
	default:
		http.NotFound(w, r)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		So(logger.Init(), ShouldBeNil)
		fake := &fakeService{records: map[string][]historyEntry{}}
		srv := httptest.NewServer(fake)
		defer srv.Close()
		cfg := &Config{BaseURL: srv.URL, Repeat: 3, Identities: 3, Workers: 4, Timeout: 5 * time.Second}
		ctx := context.Background()

		Convey("When running with synthetic images", func() {
			stats, err := Run(ctx, cfg)

			Convey("Then every upload is accounted for and history matches", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 3*syntheticImages)
				So(stats.Confirmed+stats.NotDetected, ShouldEqual, stats.Submitted)
				So(stats.Confirmed, ShouldEqual, stats.Submitted/2)
			})
		})

		Convey("When history leaks other identities' records", func() {
			fake.leak = true
			_, err := Run(ctx, cfg)

			Convey("Then verification fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "verification failed")
			})
		})

		Convey("When running with an image directory", func() {
			dir := t.TempDir()
			imgs, err := synthesize(2)
			So(err, ShouldBeNil)
			for name, data := range imgs {
				So(os.WriteFile(filepath.Join(dir, name), data, 0o600), ShouldBeNil)
			}
			So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o600), ShouldBeNil)
			cfg.ImageDir = dir
			cfg.Repeat = 1

			stats, err := Run(ctx, cfg)

			Convey("Then only the images are uploaded", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 2)
			})
		})
	})
}

func TestPlan(t *testing.T) {
	Convey("Given four images repeated twice over three identities", t, func() {
		images, err := synthesize(4)
		So(err, ShouldBeNil)
		uploads, identities := plan(&Config{Repeat: 2, Identities: 3}, images)

		Convey("Then uploads are spread round-robin", func() {
			So(len(uploads), ShouldEqual, 8)
			So(len(identities), ShouldEqual, 3)
			perIdentity := map[string]int{}
			for _, u := range uploads {
				perIdentity[u.Identity]++
			}
			So(perIdentity[identities[0]], ShouldEqual, 3)
			So(perIdentity[identities[1]], ShouldEqual, 3)
			So(perIdentity[identities[2]], ShouldEqual, 2)
		})
	})
}

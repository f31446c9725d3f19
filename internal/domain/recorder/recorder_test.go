package recorder_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/internal/domain/recorder"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	mu      sync.Mutex
	recs    []model.PredictionRecord
	putErr  error
	listErr error
	leak    bool // return every record regardless of identity
}

func (f *fakeStore) Put(_ context.Context, rec model.PredictionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeStore) ListByIdentity(_ context.Context, identity string) ([]model.PredictionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.PredictionRecord
	for _, r := range f.recs {
		if f.leak || r.Identity == identity {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Count(context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

func confirmed(label string, conf float32) model.Outcome {
	return model.Outcome{Kind: model.Confirmed, Label: model.ClassLabel(label), Confidence: conf}
}

func TestRecorder_Record(t *testing.T) {
	Convey("Given a recorder with a fixed clock", t, func() {
		ctx := context.Background()
		store := &fakeStore{}
		jakarta := time.FixedZone("WIB", 7*3600)
		now := time.Date(2024, 5, 1, 9, 0, 0, 0, jakarta)
		r := recorder.New(store, recorder.WithClock(func() time.Time { return now }))

		Convey("When recording a confirmed outcome", func() {
			info := model.DiseaseInfo{Name: "gingivitis", Description: "Gum inflammation", Treatment: "Scaling"}
			rec, err := r.Record(ctx, "user-42", confirmed("gingivitis", 0.9), info, "memory://predictions/x.png")

			Convey("Then exactly one record is stored with the caller identity", func() {
				So(err, ShouldBeNil)
				So(store.Count(ctx), ShouldEqual, 1)
				So(store.recs[0], ShouldResemble, rec)
				So(rec.Identity, ShouldEqual, "user-42")
				So(rec.Name, ShouldEqual, "gingivitis")
				So(rec.Confidence, ShouldEqual, float32(0.9))
				So(rec.Description, ShouldEqual, "Gum inflammation")
				So(rec.Treatment, ShouldEqual, "Scaling")
				So(rec.ImageURL, ShouldEqual, "memory://predictions/x.png")
			})

			Convey("Then the timestamp is the clock in UTC and the id is a v4 UUID", func() {
				So(rec.CreatedAt.Location(), ShouldEqual, time.UTC)
				So(rec.CreatedAt.Equal(now), ShouldBeTrue)
				id, err := uuid.Parse(rec.ID)
				So(err, ShouldBeNil)
				So(id.Version(), ShouldEqual, uuid.Version(4))
			})
		})

		Convey("When recording a rejected outcome", func() {
			_, err := r.Record(ctx, "user-42", model.Outcome{Kind: model.Rejected, Confidence: 0.2}, model.DiseaseInfo{}, "u")

			Convey("Then nothing is written", func() {
				So(errors.Is(err, recorder.ErrNotConfirmed), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the identity is blank", func() {
			_, err := r.Record(ctx, "  ", confirmed("ulcer", 0.95), model.DiseaseInfo{}, "u")

			Convey("Then nothing is written", func() {
				So(errors.Is(err, recorder.ErrNoIdentity), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the store rejects the write", func() {
			store.putErr = errors.New("deadline exceeded")
			_, err := r.Record(ctx, "user-42", confirmed("ulcer", 0.95), model.DiseaseInfo{}, "u")

			Convey("Then the error is a persistence failure carrying the cause", func() {
				So(errors.Is(err, recorder.ErrPersistence), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "deadline exceeded")
			})
		})

		Convey("When recording many outcomes", func() {
			seen := map[string]bool{}
			for i := 0; i < 200; i++ {
				rec, err := r.Record(ctx, "user-42", confirmed("caries", 0.99), model.DiseaseInfo{}, "u")
				So(err, ShouldBeNil)
				seen[rec.ID] = true
			}

			Convey("Then ids are unique", func() {
				So(len(seen), ShouldEqual, 200)
			})
		})
	})
}

func TestRecorder_History(t *testing.T) {
	Convey("Given records for several identities", t, func() {
		ctx := context.Background()
		store := &fakeStore{}
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		tick := 0
		ids := 0
		r := recorder.New(store,
			recorder.WithClock(func() time.Time {
				tick++
				// Consecutive records of one identity share a timestamp.
				return base.Add(time.Duration(tick/4) * time.Minute)
			}),
			recorder.WithIDGenerator(func() string {
				ids++
				return fmt.Sprintf("id-%03d", 100-ids)
			}),
		)
		for i := 0; i < 6; i++ {
			_, err := r.Record(ctx, "alice", confirmed("caries", 0.95), model.DiseaseInfo{}, "u")
			So(err, ShouldBeNil)
			_, err = r.Record(ctx, "bob", confirmed("ulcer", 0.97), model.DiseaseInfo{}, "u")
			So(err, ShouldBeNil)
		}

		Convey("When reading alice's history", func() {
			hist, err := r.History(ctx, "alice")

			Convey("Then only alice's records come back, newest first, ties by id", func() {
				So(err, ShouldBeNil)
				So(len(hist), ShouldEqual, 6)
				for i, rec := range hist {
					So(rec.Identity, ShouldEqual, "alice")
					if i > 0 {
						prev := hist[i-1]
						So(prev.CreatedAt.Before(rec.CreatedAt), ShouldBeFalse)
						if prev.CreatedAt.Equal(rec.CreatedAt) {
							So(prev.ID < rec.ID, ShouldBeTrue)
						}
					}
				}
			})
		})

		Convey("When the store leaks other identities", func() {
			store.leak = true
			hist, err := r.History(ctx, "bob")

			Convey("Then they are filtered out", func() {
				So(err, ShouldBeNil)
				So(len(hist), ShouldEqual, 6)
				for _, rec := range hist {
					So(rec.Identity, ShouldEqual, "bob")
				}
			})
		})

		Convey("When an identity has no records", func() {
			hist, err := r.History(ctx, "carol")

			Convey("Then the result is empty, not nil", func() {
				So(err, ShouldBeNil)
				So(hist, ShouldNotBeNil)
				So(len(hist), ShouldEqual, 0)
			})
		})

		Convey("When the store query fails", func() {
			store.listErr = errors.New("unavailable")
			_, err := r.History(ctx, "alice")

			Convey("Then a query error is returned", func() {
				So(errors.Is(err, recorder.ErrQuery), ShouldBeTrue)
			})
		})

		Convey("When the identity is blank", func() {
			_, err := r.History(ctx, "")
			So(errors.Is(err, recorder.ErrNoIdentity), ShouldBeTrue)
		})

		Convey("Then Count reflects every record", func() {
			So(r.Count(ctx), ShouldEqual, 12)
		})
	})
}

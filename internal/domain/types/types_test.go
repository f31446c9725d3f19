package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/oralscan/internal/domain/model"
	types "github.com/okian/oralscan/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFormatTimestamp(t *testing.T) {
	Convey("Given a UTC instant", t, func() {
		at := time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC)

		Convey("When formatting without a location", func() {
			Convey("Then it stays in UTC", func() {
				So(types.FormatTimestamp(at, nil), ShouldEqual, "2024-05-01T02:30:00Z")
			})
		})

		Convey("When formatting for a display zone", func() {
			loc := time.FixedZone("WIB", 7*3600)

			Convey("Then the offset is applied and the instant is unchanged", func() {
				s := types.FormatTimestamp(at, loc)
				So(s, ShouldEqual, "2024-05-01T09:30:00+07:00")
				back, err := time.Parse(time.RFC3339Nano, s)
				So(err, ShouldBeNil)
				So(back.Equal(at), ShouldBeTrue)
			})
		})
	})
}

func TestNewPredictResponse(t *testing.T) {
	Convey("Given a not_detected result", t, func() {
		r := &types.PredictResult{
			Status:     types.StatusNotDetected,
			Class:      model.NotDetected,
			Confidence: 0.2,
			ImageURL:   "memory://predictions/a.png",
			Message:    types.LowConfidenceMessage,
		}

		Convey("When converting for the wire", func() {
			resp := types.NewPredictResponse(r, time.UTC)
			raw, err := json.Marshal(resp)
			So(err, ShouldBeNil)

			Convey("Then confidence is rounded and record fields are omitted", func() {
				So(resp.Confidence, ShouldEqual, 0.2)
				So(string(raw), ShouldNotContainSubstring, "createdAt")
				So(string(raw), ShouldNotContainSubstring, `"id"`)
				So(string(raw), ShouldContainSubstring, `"imageUrl":"memory://predictions/a.png"`)
				So(string(raw), ShouldContainSubstring, types.LowConfidenceMessage)
			})
		})
	})

	Convey("Given a confirmed result", t, func() {
		r := &types.PredictResult{
			Status:      types.StatusConfirmed,
			Class:       "gingivitis",
			Confidence:  0.9,
			Description: "Inflamed gums",
			Treatment:   "Cleaning",
			ImageURL:    "memory://predictions/b.jpg",
			ID:          "rec-1",
			CreatedAt:   time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC),
		}

		Convey("When converting for the wire", func() {
			resp := types.NewPredictResponse(r, time.UTC)

			Convey("Then every field is carried", func() {
				So(resp.Class, ShouldEqual, "gingivitis")
				So(resp.Confidence, ShouldEqual, 0.9)
				So(resp.ID, ShouldEqual, "rec-1")
				So(resp.CreatedAt, ShouldEqual, "2024-05-01T02:30:00Z")
			})
		})
	})
}

func TestNewHistoryResponse(t *testing.T) {
	Convey("Given no records", t, func() {
		resp := types.NewHistoryResponse(nil, time.UTC)
		raw, err := json.Marshal(resp)

		Convey("Then data is an empty array, not null", func() {
			So(err, ShouldBeNil)
			So(string(raw), ShouldEqual, `{"status":"success","data":[]}`)
		})
	})

	Convey("Given records in order", t, func() {
		recs := []model.PredictionRecord{
			{ID: "b", Name: "caries", Confidence: 0.95, CreatedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
			{ID: "a", Name: "ulcer", Confidence: 0.91, CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		}

		resp := types.NewHistoryResponse(recs, time.UTC)

		Convey("Then the order and fields are preserved", func() {
			So(resp.Status, ShouldEqual, "success")
			So(len(resp.Data), ShouldEqual, 2)
			So(resp.Data[0].ID, ShouldEqual, "b")
			So(resp.Data[0].Confidence, ShouldEqual, 0.95)
			So(resp.Data[1].Name, ShouldEqual, "ulcer")
			So(resp.Data[1].CreatedAt, ShouldEqual, "2024-05-01T00:00:00Z")
		})
	})
}

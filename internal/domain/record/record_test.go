package record_test

import (
	"testing"
	"time"

	event "github.com/propely/engage/internal/domain/event"
	record "github.com/propely/engage/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseStatus(t *testing.T) {
	Convey("Given the proposal status set", t, func() {
		Convey("When parsing known statuses", func() {
			for _, s := range record.KnownStatuses() {
				parsed, err := record.ParseStatus(string(s))
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, s)
			}
		})

		Convey("When parsing an unknown status", func() {
			_, err := record.ParseStatus("archived")
			So(err, ShouldNotBeNil)
		})

		Convey("When checking terminal stages", func() {
			So(record.StatusAccepted.Closed(), ShouldBeTrue)
			So(record.StatusRejected.Closed(), ShouldBeTrue)
			So(record.StatusDraft.Closed(), ShouldBeFalse)
			So(record.StatusSent.Closed(), ShouldBeFalse)
			So(record.StatusViewed.Closed(), ShouldBeFalse)
		})
	})
}

func TestFromEvent(t *testing.T) {
	Convey("Given event flattening", t, func() {
		ts := time.Now()

		Convey("When the payload carries section fields", func() {
			e := event.New("prop-1", event.TypeSectionView, event.Data{
				event.KeySectionID:    "pricing",
				event.KeySectionTitle: "Pricing",
			}, "123-abcdefg", ts)

			tr := record.FromEvent(e)
			So(tr.ID, ShouldEqual, e.EventID)
			So(tr.ProposalID, ShouldEqual, "prop-1")
			So(tr.SessionID, ShouldEqual, "123-abcdefg")
			So(tr.EventType, ShouldEqual, event.TypeSectionView)
			So(tr.SectionID, ShouldEqual, "pricing")
			So(tr.SectionTitle, ShouldEqual, "Pricing")
			So(tr.CreatedAt, ShouldEqual, ts)
		})

		Convey("When the payload carries numeric fields", func() {
			e := event.New("prop-1", event.TypeTimeSpent, event.Data{
				event.KeyTimeSpent:   12.5,
				event.KeyScrollDepth: 80,
			}, "123-abcdefg", ts)

			tr := record.FromEvent(e)
			So(tr.TimeSpent, ShouldEqual, 12.5)
			So(tr.ScrollDepth, ShouldEqual, 80.0)
		})

		Convey("When the payload is sparse", func() {
			e := event.New("prop-1", event.TypeClick, nil, "123-abcdefg", ts)

			tr := record.FromEvent(e)
			So(tr.SectionID, ShouldEqual, "")
			So(tr.TimeSpent, ShouldEqual, 0.0)
			So(tr.ScrollDepth, ShouldEqual, 0.0)
		})
	})
}

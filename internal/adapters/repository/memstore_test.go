package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	repository "github.com/propely/engage/internal/adapters/repository"
	event "github.com/propely/engage/internal/domain/event"
	record "github.com/propely/engage/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemStoreProposals(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		Convey("When upserting proposals", func() {
			So(store.UpsertProposal(ctx, record.Proposal{ID: "b", Status: record.StatusDraft}), ShouldBeNil)
			So(store.UpsertProposal(ctx, record.Proposal{ID: "a", Status: record.StatusSent}), ShouldBeNil)

			Convey("Then reads return them ordered by id", func() {
				proposals := store.Proposals(ctx)
				So(len(proposals), ShouldEqual, 2)
				So(proposals[0].ID, ShouldEqual, "a")
				So(proposals[1].ID, ShouldEqual, "b")
			})

			Convey("Then upserting again replaces the projection", func() {
				So(store.UpsertProposal(ctx, record.Proposal{ID: "a", Status: record.StatusAccepted}), ShouldBeNil)
				proposals := store.Proposals(ctx)
				So(len(proposals), ShouldEqual, 2)
				So(proposals[0].Status, ShouldEqual, record.StatusAccepted)
			})
		})

		Convey("When seeding through an option", func() {
			seeded := repository.NewMemStore(repository.WithSeedProposals([]record.Proposal{
				{ID: "x", Status: record.StatusViewed},
			}))
			So(len(seeded.Proposals(ctx)), ShouldEqual, 1)
		})
	})
}

func TestMemStoreViews(t *testing.T) {
	Convey("Given view bookkeeping", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		at := time.Now()

		Convey("When opening a view twice for one session", func() {
			So(store.OpenView(ctx, "prop-1", "sess-1", at), ShouldBeNil)
			So(store.OpenView(ctx, "prop-1", "sess-1", at.Add(time.Minute)), ShouldBeNil)

			Convey("Then only one view exists", func() {
				views := store.Views(ctx)
				So(len(views), ShouldEqual, 1)
				So(views[0].ProposalID, ShouldEqual, "prop-1")
				So(views[0].SessionID, ShouldEqual, "sess-1")
				So(views[0].CreatedAt, ShouldEqual, at)
			})
		})

		Convey("When adding view time", func() {
			So(store.AddViewTime(ctx, "prop-1", "sess-1", 30, at), ShouldBeNil)
			So(store.AddViewTime(ctx, "prop-1", "sess-1", 12.5, at), ShouldBeNil)

			Convey("Then seconds accumulate on one view", func() {
				views := store.Views(ctx)
				So(len(views), ShouldEqual, 1)
				So(views[0].TimeSpent, ShouldEqual, 42.5)
			})
		})

		Convey("When adding time before any page_view arrived", func() {
			So(store.AddViewTime(ctx, "prop-2", "sess-9", 5, at), ShouldBeNil)

			Convey("Then the view is opened implicitly", func() {
				views := store.Views(ctx)
				So(len(views), ShouldEqual, 1)
				So(views[0].TimeSpent, ShouldEqual, 5.0)
			})
		})

		Convey("When sessions differ", func() {
			So(store.OpenView(ctx, "prop-1", "sess-1", at), ShouldBeNil)
			So(store.OpenView(ctx, "prop-1", "sess-2", at), ShouldBeNil)
			So(len(store.Views(ctx)), ShouldEqual, 2)
		})
	})
}

func TestMemStoreTrackings(t *testing.T) {
	Convey("Given tracking appends", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		Convey("When appending records", func() {
			So(store.AppendTracking(ctx, record.Tracking{ID: "t1", EventType: event.TypeScroll, ScrollDepth: 30}), ShouldBeNil)
			So(store.AppendTracking(ctx, record.Tracking{ID: "t2", EventType: event.TypeSectionView, SectionID: "intro"}), ShouldBeNil)

			Convey("Then reads preserve insertion order", func() {
				trackings := store.Trackings(ctx)
				So(len(trackings), ShouldEqual, 2)
				So(trackings[0].ID, ShouldEqual, "t1")
				So(trackings[1].ID, ShouldEqual, "t2")
			})

			Convey("Then returned slices are copies", func() {
				trackings := store.Trackings(ctx)
				trackings[0].ID = "mutated"
				So(store.Trackings(ctx)[0].ID, ShouldEqual, "t1")
			})
		})
	})
}

func TestMemStoreCounts(t *testing.T) {
	Convey("Given a populated store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		So(store.UpsertProposal(ctx, record.Proposal{ID: "a"}), ShouldBeNil)
		So(store.OpenView(ctx, "a", "s1", time.Now()), ShouldBeNil)
		So(store.AppendTracking(ctx, record.Tracking{ID: "t1"}), ShouldBeNil)
		So(store.AppendTracking(ctx, record.Tracking{ID: "t2"}), ShouldBeNil)

		proposals, views, trackings := store.Counts(ctx)
		So(proposals, ShouldEqual, 1)
		So(views, ShouldEqual, 1)
		So(trackings, ShouldEqual, 2)
	})
}

func TestMemStoreConcurrency(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = store.AppendTracking(ctx, record.Tracking{EventType: event.TypeScroll})
					_ = store.AddViewTime(ctx, "prop", "sess", 1, time.Now())
					_ = store.Trackings(ctx)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then all writes land", func() {
			_, views, trackings := store.Counts(ctx)
			So(trackings, ShouldEqual, 400)
			So(views, ShouldEqual, 1)
			views2 := store.Views(ctx)
			So(views2[0].TimeSpent, ShouldEqual, 400.0)
		})
	})
}

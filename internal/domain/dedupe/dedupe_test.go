package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	dedupe "github.com/safer-strategy/data-transformation-tool/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("When claiming a new fingerprint", func() {
			owner, seen := d.Claim(ctx, "hash-1", "run-1")

			Convey("Then it should be recorded for the run", func() {
				So(seen, ShouldBeFalse)
				So(owner, ShouldEqual, "run-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same fingerprint is claimed again", func() {
			d.Claim(ctx, "hash-1", "run-1")
			owner, seen := d.Claim(ctx, "hash-1", "run-2")

			Convey("Then the first run should own it", func() {
				So(seen, ShouldBeTrue)
				So(owner, ShouldEqual, "run-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a fingerprint is released", func() {
			d.Claim(ctx, "hash-1", "run-1")
			d.Release(ctx, "hash-1")
			d.Release(ctx, "never-claimed")
			owner, seen := d.Claim(ctx, "hash-1", "run-2")

			Convey("Then it can be claimed by another run", func() {
				So(seen, ShouldBeFalse)
				So(owner, ShouldEqual, "run-2")
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more fingerprints arrive than it can hold", func() {
			for i := range 5 {
				d.Claim(ctx, fmt.Sprintf("hash-%d", i), fmt.Sprintf("run-%d", i))
			}

			Convey("Then the oldest should be evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, seen := d.Claim(ctx, "hash-0", "run-x")
				So(seen, ShouldBeFalse)
				_, seen = d.Claim(ctx, "hash-4", "run-y")
				So(seen, ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		for i := range 2000 {
			d.Claim(ctx, fmt.Sprintf("hash-%d", i), "run")
		}

		Convey("Then nothing should be evicted", func() {
			So(d.Size(), ShouldEqual, 2000)
		})
	})

	Convey("Given concurrent claims of one fingerprint", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0

		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, seen := d.Claim(ctx, "same", fmt.Sprintf("run-%d", i)); !seen {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one claim should win", func() {
			So(fresh, ShouldEqual, 1)
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given content", t, func() {
		a, err := dedupe.Fingerprint(strings.NewReader("user_id,email\nu1,a@x.com\n"))
		So(err, ShouldBeNil)
		b, _ := dedupe.Fingerprint(strings.NewReader("user_id,email\nu1,a@x.com\n"))
		c, _ := dedupe.Fingerprint(strings.NewReader("user_id,email\nu2,b@x.com\n"))

		Convey("Then equal content should hash equally", func() {
			So(a, ShouldEqual, b)
			So(a, ShouldNotEqual, c)
			So(a, ShouldHaveLength, 64)
		})
	})
}

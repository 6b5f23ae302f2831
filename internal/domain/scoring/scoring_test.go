package scoring_test

import (
	"testing"

	scoring "github.com/safer-strategy/data-transformation-tool/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey("Given raw header names", t, func() {
		Convey("Then case, separators and diacritics should be folded", func() {
			So(scoring.Normalize("  User_ID "), ShouldEqual, "userid")
			So(scoring.Normalize("E-Mail Address"), ShouldEqual, "emailaddress")
			So(scoring.Normalize("Prénom"), ShouldEqual, "prenom")
			So(scoring.Normalize("first.name"), ShouldEqual, "firstname")
		})
	})
}

func TestLevenshteinScorer_Score(t *testing.T) {
	Convey("Given a default scorer", t, func() {
		scorer := scoring.NewLevenshteinScorer()

		Convey("When names normalize to the same form", func() {
			Convey("Then the score should be 100", func() {
				So(scorer.Score("UserID", "user_id"), ShouldEqual, 100.0)
			})
		})

		Convey("When names differ by a few edits", func() {
			score := scorer.Score("emial", "email")

			Convey("Then the score should be the edit ratio", func() {
				So(score, ShouldAlmostEqual, 60, 0.001)
			})
		})

		Convey("When names share nothing", func() {
			Convey("Then the score should be 0", func() {
				So(scorer.Score("abc", "xyz"), ShouldEqual, 0.0)
			})
		})

		Convey("When both names are empty", func() {
			Convey("Then the score should be 100", func() {
				So(scorer.Score("", " "), ShouldEqual, 100.0)
			})
		})

		Convey("When scoring is repeated", func() {
			Convey("Then it should be symmetric and stable", func() {
				So(scorer.Score("grp name", "group_name"), ShouldEqual, scorer.Score("group_name", "grp name"))
				So(scorer.Score("grp name", "group_name"), ShouldEqual, scorer.Score("grp name", "group_name"))
			})
		})
	})
}

func TestLevenshteinScorer_Classify(t *testing.T) {
	Convey("Given a default scorer", t, func() {
		scorer := scoring.NewLevenshteinScorer()

		Convey("Then tiers should follow the default thresholds", func() {
			So(scorer.Classify(100), ShouldEqual, scoring.TierAccept)
			So(scorer.Classify(80), ShouldEqual, scoring.TierAccept)
			So(scorer.Classify(79.9), ShouldEqual, scoring.TierReview)
			So(scorer.Classify(50), ShouldEqual, scoring.TierReview)
			So(scorer.Classify(49.9), ShouldEqual, scoring.TierUnresolved)
		})

		Convey("Then a higher score never lands in a lower tier", func() {
			prev := scorer.Classify(0).Rank()
			for s := 0.0; s <= 100; s += 0.5 {
				rank := scorer.Classify(s).Rank()
				So(rank, ShouldBeGreaterThanOrEqualTo, prev)
				prev = rank
			}
		})
	})

	Convey("Given custom thresholds", t, func() {
		scorer := scoring.NewLevenshteinScorer(scoring.WithThresholds(90, 70))

		Convey("Then they should be applied", func() {
			accept, review := scorer.Thresholds()
			So(accept, ShouldEqual, 90.0)
			So(review, ShouldEqual, 70.0)
			So(scorer.Classify(85), ShouldEqual, scoring.TierReview)
			So(scorer.Classify(69), ShouldEqual, scoring.TierUnresolved)
		})
	})

	Convey("Given inverted thresholds", t, func() {
		scorer := scoring.NewLevenshteinScorer(scoring.WithThresholds(40, 60))

		Convey("Then the defaults should be kept", func() {
			accept, review := scorer.Thresholds()
			So(accept, ShouldEqual, scoring.DefaultAcceptThreshold)
			So(review, ShouldEqual, scoring.DefaultReviewThreshold)
		})
	})
}

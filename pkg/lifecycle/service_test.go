package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/experimenter-api/pkg/database"
	"github.com/mozilla-services/experimenter-api/pkg/email"
	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/forms"
	"github.com/mozilla-services/experimenter-api/pkg/logger"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Notify(ctx context.Context, recipient, message string) error {
	f.sent = append(f.sent, recipient+": "+message)
	return nil
}

type fakeEvents struct {
	emitted []string
	payload map[string]any
}

func (f *fakeEvents) Emit(ctx context.Context, event string, payload map[string]any) {
	f.emitted = append(f.emitted, event)
	f.payload = payload
}

func newTestService(t *testing.T) (*Service, *fakeNotifier, *fakeEvents) {
	svc, notifier, events, _ := newTestServiceWithMailer(t)
	return svc, notifier, events
}

func newTestServiceWithMailer(t *testing.T) (*Service, *fakeNotifier, *fakeEvents, *email.Service) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier := &fakeNotifier{}
	events := &fakeEvents{}
	mailer := email.NewCaptureService()
	svc := NewService(db.DB, Config{
		BugzillaHost: "bugzilla.mozilla.org",
		Now: func() time.Time {
			return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		},
	}, notifier, events, mailer, logger.NopLogger{})
	return svc, notifier, events, mailer
}

func overviewForm(name string) *forms.OverviewForm {
	return &forms.OverviewForm{
		Type:                   string(experiments.TypePref),
		Name:                   name,
		ShortDescription:       "Measures engagement.",
		DataScienceBugzillaURL: "https://bugzilla.mozilla.org/show_bug.cgi?id=1234",
		Owner:                  "owner@mozilla.com",
		AnalysisOwner:          "ds@mozilla.com",
	}
}

func createDraft(t *testing.T, svc *Service, name string) *models.Experiment {
	t.Helper()
	exp, err := svc.Create(context.Background(), "owner@mozilla.com", overviewForm(name))
	require.NoError(t, err)
	return exp
}

func saveDesign(t *testing.T, svc *Service, slug string) {
	t.Helper()
	form := forms.NewDesignForm(experiments.TypePref, forms.DesignRequest{
		PrefKey:    "browser.test.enabled",
		PrefType:   string(experiments.PrefTypeBool),
		PrefBranch: string(experiments.PrefBranchDefault),
		Variants: []forms.Variant{
			{Name: "Control", Ratio: 50, IsControl: true, Value: "true"},
			{Name: "Treatment", Ratio: 50, Value: "false"},
		},
	})
	_, err := svc.SaveSection(context.Background(), slug, "owner@mozilla.com", form)
	require.NoError(t, err)
}

func TestCreate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	exp := createDraft(t, svc, "Search Bar Study")
	assert.Equal(t, experiments.StatusDraft, exp.Status)
	assert.Equal(t, "search-bar-study", exp.Slug)

	entries, err := svc.Changelog(ctx, exp.Slug)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].OldStatus)
	assert.Equal(t, experiments.StatusDraft, entries[0].NewStatus)
	assert.Contains(t, entries[0].ChangedValues, "name")
	assert.Nil(t, entries[0].ChangedValues["name"].OldValue)
	assert.Equal(t, "Search Bar Study", entries[0].ChangedValues["name"].NewValue)

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := svc.Create(ctx, "owner@mozilla.com", overviewForm("Search Bar Study"))
		var fieldErrs experiments.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.Contains(t, fieldErrs["name"], "This name is already in use")
	})
}

func TestSaveSectionWritesOneChangelogRowPerSave(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	exp := createDraft(t, svc, "Changelog Study")

	objectives := &forms.ObjectivesForm{
		Objectives: "Hypothesis one.",
		Analysis:   "Compare retention.",
	}
	_, err := svc.SaveSection(ctx, exp.Slug, "editor@mozilla.com", objectives)
	require.NoError(t, err)

	entries, err := svc.Changelog(ctx, exp.Slug)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	latest := entries[0]
	assert.Equal(t, "editor@mozilla.com", latest.ChangedBy)
	require.Contains(t, latest.ChangedValues, "objectives")
	assert.Nil(t, latest.ChangedValues["objectives"].OldValue)
	assert.Equal(t, "Hypothesis one.", latest.ChangedValues["objectives"].NewValue)
	assert.NotContains(t, latest.ChangedValues, "name")

	t.Run("a save without changes records an empty diff", func(t *testing.T) {
		_, err := svc.SaveSection(ctx, exp.Slug, "editor@mozilla.com", objectives)
		require.NoError(t, err)

		entries, err := svc.Changelog(ctx, exp.Slug)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Empty(t, entries[0].ChangedValues)
	})

	t.Run("edits record both old and new values", func(t *testing.T) {
		updated := &forms.ObjectivesForm{
			Objectives: "Hypothesis two.",
			Analysis:   "Compare retention.",
		}
		_, err := svc.SaveSection(ctx, exp.Slug, "editor@mozilla.com", updated)
		require.NoError(t, err)

		entries, err := svc.Changelog(ctx, exp.Slug)
		require.NoError(t, err)
		change := entries[0].ChangedValues["objectives"]
		assert.Equal(t, "Hypothesis one.", change.OldValue)
		assert.Equal(t, "Hypothesis two.", change.NewValue)
		assert.Equal(t, "Objectives", change.DisplayName)
	})
}

func TestDesignSaveReplacesBranches(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	exp := createDraft(t, svc, "Branch Study")

	saveDesign(t, svc, exp.Slug)
	loaded, err := svc.Get(ctx, exp.Slug)
	require.NoError(t, err)
	require.Len(t, loaded.Variants, 2)

	form := forms.NewDesignForm(experiments.TypePref, forms.DesignRequest{
		PrefKey:    "browser.test.enabled",
		PrefType:   string(experiments.PrefTypeBool),
		PrefBranch: string(experiments.PrefBranchDefault),
		Variants: []forms.Variant{
			{Name: "Control", Ratio: 34, IsControl: true, Value: "true"},
			{Name: "Treatment A", Ratio: 33, Value: "false"},
			{Name: "Treatment B", Ratio: 33, Value: "null"},
		},
	})
	_, err = svc.SaveSection(ctx, exp.Slug, "owner@mozilla.com", form)
	require.NoError(t, err)

	loaded, err = svc.Get(ctx, exp.Slug)
	require.NoError(t, err)
	require.Len(t, loaded.Variants, 3)

	entries, err := svc.Changelog(ctx, exp.Slug)
	require.NoError(t, err)
	assert.Contains(t, entries[0].ChangedValues, "variants")

	t.Run("invalid branch sets are rejected", func(t *testing.T) {
		bad := forms.NewDesignForm(experiments.TypePref, forms.DesignRequest{
			PrefKey:    "browser.test.enabled",
			PrefType:   string(experiments.PrefTypeBool),
			PrefBranch: string(experiments.PrefBranchDefault),
			Variants: []forms.Variant{
				{Name: "Control", Ratio: 60, IsControl: true, Value: "true"},
				{Name: "Treatment", Ratio: 30, Value: "false"},
			},
		})
		_, err := svc.SaveSection(ctx, exp.Slug, "owner@mozilla.com", bad)
		var fieldErrs experiments.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.True(t, fieldErrs.Has("variants"))
	})
}

func TestStatusTransitions(t *testing.T) {
	svc, _, events, mailer := newTestServiceWithMailer(t)
	ctx := context.Background()
	exp := createDraft(t, svc, "Lifecycle Study")

	timeline := &forms.TimelinePopulationForm{
		ProposedStartDate: "2026-04-01",
		ProposedDuration:  intPtr(30),
		PopulationPercent: 10,
		FirefoxMinVersion: "57.0",
		FirefoxChannel:    string(experiments.ChannelNightly),
	}
	_, err := svc.SaveSection(ctx, exp.Slug, "owner@mozilla.com", timeline)
	require.NoError(t, err)
	saveDesign(t, svc, exp.Slug)

	t.Run("rejects skipping states", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, exp.Slug, "owner@mozilla.com", string(experiments.StatusLive))
		var fieldErrs experiments.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.Contains(t, fieldErrs["status"][0], "Draft")
		assert.Contains(t, fieldErrs["status"][0], "Live")
	})

	t.Run("draft to review requests a bug", func(t *testing.T) {
		updated, err := svc.UpdateStatus(ctx, exp.Slug, "owner@mozilla.com", string(experiments.StatusReview))
		require.NoError(t, err)
		assert.Equal(t, experiments.StatusReview, updated.Status)
		assert.Contains(t, events.emitted, EventBugCreate)

		description, _ := events.payload["description"].(string)
		assert.Contains(t, description, "Pref Flip Experiment")
		assert.Contains(t, description, "browser.test.enabled")

		entries, err := svc.Changelog(ctx, exp.Slug)
		require.NoError(t, err)
		require.NotNil(t, entries[0].OldStatus)
		assert.Equal(t, experiments.StatusDraft, *entries[0].OldStatus)
		assert.Equal(t, experiments.StatusReview, entries[0].NewStatus)
		assert.Empty(t, entries[0].ChangedValues)
	})

	t.Run("review to ship stamps the delivery slug", func(t *testing.T) {
		form := &forms.StatusForm{
			Status:    string(experiments.StatusShip),
			Attention: "Needs to ride the next release train.",
		}
		updated, err := svc.SaveSection(ctx, exp.Slug, "owner@mozilla.com", form)
		require.NoError(t, err)
		assert.Equal(t, "pref-lifecycle-study-nightly-57-0", updated.NormandySlug)
		assert.Contains(t, events.emitted, EventBugUpdate)
		assert.Equal(t, updated.NormandySlug, events.payload["normandy_slug"])
		assert.Contains(t, events.payload["description"], "browser.test.enabled")

		require.Len(t, mailer.Sent, 1)
		sent := mailer.Sent[0]
		assert.Equal(t, "owner@mozilla.com", sent.To)
		assert.Contains(t, sent.Subject, "Intent to ship")
		assert.Contains(t, sent.Body, experiments.AttentionMessage)
		assert.Contains(t, sent.Body, "Needs to ride the next release train.")
	})

	t.Run("backtracking to review is allowed", func(t *testing.T) {
		updated, err := svc.UpdateStatus(ctx, exp.Slug, "owner@mozilla.com", string(experiments.StatusReview))
		require.NoError(t, err)
		assert.Equal(t, experiments.StatusReview, updated.Status)
	})

	t.Run("complete is terminal", func(t *testing.T) {
		for _, status := range []experiments.Status{
			experiments.StatusShip, experiments.StatusAccepted,
			experiments.StatusLive, experiments.StatusComplete,
		} {
			_, err := svc.UpdateStatus(ctx, exp.Slug, "owner@mozilla.com", string(status))
			require.NoError(t, err)
		}
		_, err := svc.UpdateStatus(ctx, exp.Slug, "owner@mozilla.com", string(experiments.StatusLive))
		var fieldErrs experiments.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
	})
}

func TestArchive(t *testing.T) {
	svc, notifier, _ := newTestService(t)
	ctx := context.Background()

	t.Run("drafts can be archived and unarchived", func(t *testing.T) {
		exp := createDraft(t, svc, "Archivable Study")

		archived, err := svc.Archive(ctx, exp.Slug, "owner@mozilla.com")
		require.NoError(t, err)
		assert.True(t, archived.Archived)

		entries, err := svc.Changelog(ctx, exp.Slug)
		require.NoError(t, err)
		assert.Equal(t, "Archived Experiment", entries[0].Message)
		assert.Contains(t, entries[0].ChangedValues, "archived")

		unarchived, err := svc.Archive(ctx, exp.Slug, "owner@mozilla.com")
		require.NoError(t, err)
		assert.False(t, unarchived.Archived)
	})

	t.Run("in-flight experiments cannot be archived", func(t *testing.T) {
		exp := createDraft(t, svc, "Busy Study")
		_, err := svc.UpdateStatus(ctx, exp.Slug, "owner@mozilla.com", string(experiments.StatusReview))
		require.NoError(t, err)

		unchanged, err := svc.Archive(ctx, exp.Slug, "owner@mozilla.com")
		require.NoError(t, err)
		assert.False(t, unchanged.Archived)
		require.NotEmpty(t, notifier.sent)
		assert.Contains(t, notifier.sent[len(notifier.sent)-1], "cannot be archived")
	})
}

func TestReviewSaveNotifiesActor(t *testing.T) {
	svc, notifier, _ := newTestService(t)
	ctx := context.Background()
	exp := createDraft(t, svc, "Signoff Study")

	form := &forms.ReviewForm{ReviewScience: true, ReviewQA: true}
	_, err := svc.SaveSection(ctx, exp.Slug, "reviewer@mozilla.com", form)
	require.NoError(t, err)

	entries, err := svc.Changelog(ctx, exp.Slug)
	require.NoError(t, err)
	assert.Contains(t, entries[0].Message, "Added sign-offs:")
	assert.Contains(t, entries[0].Message, "Data Science Peer Review")

	// The user who recorded the sign-off is notified, not the owner.
	require.NotEmpty(t, notifier.sent)
	assert.Contains(t, notifier.sent[0], "reviewer@mozilla.com")
	assert.NotContains(t, notifier.sent[0], "owner@mozilla.com")
	assert.Contains(t, notifier.sent[0], "Added sign-offs:")
}

func TestGetUnknownSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, experiments.ErrNotFound))
}

func intPtr(v int) *int { return &v }

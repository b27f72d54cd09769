package content

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub-dev/schoolhub/internal/models"
	"github.com/schoolhub-dev/schoolhub/internal/storage"
	"github.com/schoolhub-dev/schoolhub/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.New(t.TempDir(), "http://localhost:8080", zerolog.Nop())
	require.NoError(t, err)
	svc := NewService(testutil.NewDB(t), store, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func strPtr(s string) *string { return &s }

func TestStaffOrderAndPatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateStaff(ctx, &models.Staff{Name: "B", Position: "Teacher", DisplayOrder: 2}))
	director := &models.Staff{Name: "A", Position: "Director", IsDirector: true, DisplayOrder: 1}
	require.NoError(t, svc.CreateStaff(ctx, director))

	staff, err := svc.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "A", staff[0].Name)

	notDirector := false
	updated, err := svc.UpdateStaff(ctx, director.ID, StaffPatch{IsDirector: &notDirector, Bio: strPtr("Head")})
	require.NoError(t, err)
	assert.False(t, updated.IsDirector)
	assert.Equal(t, "Head", *updated.Bio)
	assert.Equal(t, "Director", updated.Position)

	_, err = svc.UpdateStaff(ctx, "missing", StaffPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteStaff(ctx, director.ID))
	assert.ErrorIs(t, svc.DeleteStaff(ctx, director.ID), ErrNotFound)
}

func TestStaffPhotoUpload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	member := &models.Staff{Name: "A", Position: "Teacher"}
	require.NoError(t, svc.CreateStaff(ctx, member))

	url, err := svc.UploadStaffPhoto(ctx, member.ID, Upload{Filename: "me.jpg", ContentType: "image/jpeg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/storage/v1/object/public/staff-photos/"+member.ID+"/"))

	got, err := svc.GetStaff(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, url, *got.PhotoURL)
}

func TestEventsFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, e := range []models.Event{
		{Title: "past", EventDate: "2026-03-01"},
		{Title: "today", EventDate: "2026-03-10", IsFeatured: true},
		{Title: "later", EventDate: "2026-04-01"},
		{Title: "soon", EventDate: "2026-03-15", IsFeatured: true},
	} {
		e := e
		require.NoError(t, svc.CreateEvent(ctx, &e))
	}

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all", EventFilter{}, []string{"past", "today", "soon", "later"}},
		{"upcoming", EventFilter{Upcoming: true}, []string{"today", "soon", "later"}},
		{"featured", EventFilter{Featured: true}, []string{"today", "soon"}},
		{"limit", EventFilter{Upcoming: true, Limit: 1}, []string{"today"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := svc.ListEvents(ctx, tt.filter)
			require.NoError(t, err)
			var titles []string
			for _, e := range events {
				titles = append(titles, e.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}

	between, err := svc.EventsBetween(ctx, "2026-03-10", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, between, 2)
}

func TestLatestUpdatesFeed(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateEvent(ctx, &models.Event{Title: "old", EventDate: "2025-12-01"}))
	for i := 0; i < 7; i++ {
		date := time.Date(2026, 3, 11+i, 0, 0, 0, 0, time.UTC).Format(dateLayout)
		require.NoError(t, svc.CreateEvent(ctx, &models.Event{Title: "e" + date, EventDate: date}))
	}

	items, err := svc.LatestUpdates(ctx)
	require.NoError(t, err)
	require.Len(t, items, UpdatesFeedSize)
	assert.Equal(t, "2026-03-11", items[0].EventDate)
	assert.Equal(t, "2026-03-15", items[4].EventDate)
}

func TestGalleryCategoryDeleteRequiresEmpty(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cat := &models.GalleryCategory{Name: "Sports"}
	require.NoError(t, svc.CreateCategory(ctx, cat))
	item := &models.GalleryItem{MediaURL: "http://x/a.mp4", CategoryID: &cat.ID}
	require.NoError(t, svc.CreateGalleryItem(ctx, item))
	assert.Equal(t, models.MediaVideo, item.MediaType)

	items, err := svc.ListGalleryItems(ctx, GalleryFilter{CategoryID: cat.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Category)
	assert.Equal(t, "Sports", items[0].Category.Name)

	assert.ErrorIs(t, svc.DeleteCategory(ctx, cat.ID), ErrCategoryInUse)

	empty := ""
	_, err = svc.UpdateGalleryItem(ctx, item.ID, GalleryItemPatch{CategoryID: &empty})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestGalleryFeaturedLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < FeaturedGallerySize+2; i++ {
		require.NoError(t, svc.CreateGalleryItem(ctx, &models.GalleryItem{MediaURL: "http://x/a.jpg"}))
	}
	items, err := svc.ListGalleryItems(ctx, GalleryFilter{Featured: true})
	require.NoError(t, err)
	assert.Len(t, items, FeaturedGallerySize)
}

func TestGalleryUploadAndDeleteRemovesMedia(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item := &models.GalleryItem{MediaURL: "http://x/placeholder.jpg"}
	require.NoError(t, svc.CreateGalleryItem(ctx, item))

	url, mediaType, err := svc.UploadGalleryMedia(ctx, item.ID, Upload{Filename: "clip.bin", ContentType: "video/mp4", Body: strings.NewReader("mp4")})
	require.NoError(t, err)
	assert.Equal(t, models.MediaVideo, mediaType)
	assert.Contains(t, url, "/gallery-media/videos/"+item.ID+"-")

	got, err := svc.GetGalleryItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, url, got.MediaURL)
	assert.Equal(t, models.MediaVideo, got.MediaType)

	objectPath, ok := svc.store.PathFromPublicURL(storage.BucketGalleryMedia, url)
	require.True(t, ok)

	require.NoError(t, svc.DeleteGalleryItem(ctx, item.ID))
	_, _, err = svc.store.Open(storage.BucketGalleryMedia, objectPath)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = svc.GetGalleryItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGalleryDeleteWithForeignMediaURL(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item := &models.GalleryItem{MediaURL: "https://cdn.example.com/a.jpg"}
	require.NoError(t, svc.CreateGalleryItem(ctx, item))
	assert.NoError(t, svc.DeleteGalleryItem(ctx, item.ID))
}

func TestNewsPublishingAndRendering(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	draft := &models.News{Title: "Draft", Content: "**bold**"}
	require.NoError(t, svc.CreateNews(ctx, draft))
	assert.Contains(t, draft.ContentHTML, "<strong>bold</strong>")

	published := &models.News{Title: "Out", Content: "<script>x</script>", IsPublished: true}
	require.NoError(t, svc.CreateNews(ctx, published))
	assert.NotContains(t, published.ContentHTML, "<script>")

	list, err := svc.ListNews(ctx, NewsFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Out", list[0].Title)

	all, err := svc.ListNews(ctx, NewsFilter{IncludeDrafts: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.SetNewsPublished(ctx, draft.ID, true)
	require.NoError(t, err)
	featured, err := svc.SetNewsFeatured(ctx, draft.ID, true)
	require.NoError(t, err)
	assert.True(t, featured.IsPublished)
	assert.True(t, featured.IsFeatured)

	related, err := svc.RelatedNews(ctx, draft.ID, 0)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, published.ID, related[0].ID)
}

func TestAchievementsFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	level := func(l string) *string { return &l }
	for _, a := range []models.Achievement{
		{Title: "B", Year: 2024, ClassLevel: level(models.ClassLevel10)},
		{Title: "A", Year: 2024, ClassLevel: level(models.ClassLevelBoth), IsFeatured: true},
		{Title: "C", Year: 2025, ClassLevel: level(models.ClassLevel12)},
	} {
		a := a
		require.NoError(t, svc.CreateAchievement(ctx, &a))
	}

	all, err := svc.ListAchievements(ctx, AchievementFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{all[0].Title, all[1].Title, all[2].Title})

	tenth, err := svc.ListAchievements(ctx, AchievementFilter{ClassLevel: models.ClassLevel10})
	require.NoError(t, err)
	assert.Len(t, tenth, 2)

	y2024, err := svc.ListAchievements(ctx, AchievementFilter{Year: 2024, Featured: true})
	require.NoError(t, err)
	require.Len(t, y2024, 1)
	assert.Equal(t, "A", y2024[0].Title)

	years, err := svc.AchievementYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2024}, years)

	err = svc.CreateAchievement(ctx, &models.Achievement{Title: "X", Year: 2024, ClassLevel: level("11")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewsletterSubscribe(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.Subscribe(ctx, " Parent@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionCreated, res)
	assert.True(t, res.Welcome())

	res, err = svc.Subscribe(ctx, "parent@example.com")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionAlreadyActive, res)
	assert.False(t, res.Welcome())

	require.NoError(t, svc.Unsubscribe(ctx, "parent@example.com"))
	active, err := svc.ListSubscribers(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	res, err = svc.Subscribe(ctx, "parent@example.com")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionReactivated, res)

	all, err := svc.ListSubscribers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Subscribe(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInquiriesAndDashboard(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := &models.ContactInquiry{Name: "A", Email: "a@example.com", Message: "hi", IsRead: true}
	require.NoError(t, svc.SubmitInquiry(ctx, first))
	assert.False(t, first.IsRead)
	require.NoError(t, svc.SubmitInquiry(ctx, &models.ContactInquiry{Name: "B", Email: "b@example.com", Message: "hello"}))

	_, err := svc.MarkInquiryRead(ctx, first.ID, true)
	require.NoError(t, err)

	unread := false
	list, err := svc.ListInquiries(ctx, InquiryFilter{Read: &unread})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Name)

	require.NoError(t, svc.CreateStaff(ctx, &models.Staff{Name: "A", Position: "P"}))
	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Staff)
	assert.Equal(t, int64(1), stats.UnreadInquiries)
	assert.Zero(t, stats.Events)
}

func TestProfilesAndRoleLookup(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	lookup := NewProfileRoles(svc.db)

	_, found, err := lookup.ProfileRole(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = svc.UpsertProfile(ctx, &models.Profile{UserID: "u1", FullName: strPtr("Ann")})
	require.NoError(t, err)

	role, found, err := lookup.ProfileRole(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.RoleViewer, role)

	admin := models.RoleAdmin
	p, err := svc.UpdateProfile(ctx, "u1", ProfilePatch{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, "Ann", *p.FullName)

	p, err = svc.UpsertProfile(ctx, &models.Profile{UserID: "u1", Role: models.RoleEditor})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, p.Role)
	assert.Nil(t, p.FullName)

	url, err := svc.UploadAvatar(ctx, "u1", Upload{Filename: "a.png", Body: strings.NewReader("x")})
	require.NoError(t, err)
	p, err = svc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, url, *p.AvatarURL)

	_, err = svc.UploadAvatar(ctx, "nobody", Upload{Filename: "a.png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMediaTypeFor(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        string
	}{
		{"a.MP4", "", models.MediaVideo},
		{"b.webm", "", models.MediaVideo},
		{"c.jpg", "", models.MediaImage},
		{"noext", "", models.MediaImage},
		{"d.mp4", "image/png", models.MediaImage},
		{"e.jpg", "video/quicktime", models.MediaVideo},
	}
	for _, tt := range tests {
		if got := MediaTypeFor(tt.filename, tt.contentType); got != tt.want {
			t.Errorf("MediaTypeFor(%q, %q) = %q, want %q", tt.filename, tt.contentType, got, tt.want)
		}
	}
}

package stories

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"storybooks/config"
	"storybooks/controllers/authentication"
	"storybooks/models"
	"storybooks/views"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	renderer, err := views.New(log)
	require.NoError(t, err)
	return &Handler{DB: db, Views: renderer, Log: log}
}

func seedUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{Name: name, Email: strings.ToLower(name) + "@example.com"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedStory(t *testing.T, db *gorm.DB, owner models.User, title, status string, created time.Time) models.Story {
	t.Helper()
	story := models.Story{
		Title: title, Body: "body of " + title, Status: status,
		UserID: owner.ID, CreatedAt: created,
	}
	require.NoError(t, db.Create(&story).Error)
	return story
}

// request builds an authenticated request the way the guard and the router
// would hand it to a handler: identity in context, path vars resolved.
func request(method, path string, caller models.User, form url.Values, storyID string) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	r := httptest.NewRequest(method, path, body)
	if form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	ctx := authentication.WithIdentity(r.Context(), authentication.Identity{
		UserID: caller.ID, Name: caller.Name,
	})
	r = r.WithContext(ctx)
	if storyID != "" {
		r = mux.SetURLVars(r, map[string]string{"id": storyID})
	}
	return r
}

func fmtUint(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestCreateOwnedByCaller(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")

	w := httptest.NewRecorder()
	h.Create(w, request(http.MethodPost, "/stories", ada, url.Values{
		"title":  {"First day"},
		"body":   {"It rained."},
		"status": {"public"},
	}, ""))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	var story models.Story
	require.NoError(t, h.DB.First(&story).Error)
	assert.Equal(t, ada.ID, story.UserID)
	assert.Equal(t, "First day", story.Title)
	assert.Equal(t, models.StatusPublic, story.Status)
	assert.False(t, story.CreatedAt.IsZero())
}

func TestCreateRejectsInvalidStatus(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")

	w := httptest.NewRecorder()
	h.Create(w, request(http.MethodPost, "/stories", ada, url.Values{
		"title":  {"First day"},
		"body":   {"It rained."},
		"status": {"friends"},
	}, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var count int64
	h.DB.Model(&models.Story{}).Count(&count)
	assert.Zero(t, count)
}

func TestIndexListsOnlyPublicNewestFirst(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	grace := seedUser(t, h.DB, "Grace")

	now := time.Now()
	seedStory(t, h.DB, ada, "Old public", models.StatusPublic, now.Add(-2*time.Hour))
	seedStory(t, h.DB, ada, "Hidden", models.StatusPrivate, now.Add(-time.Hour))
	seedStory(t, h.DB, grace, "New public", models.StatusPublic, now)

	w := httptest.NewRecorder()
	h.Index(w, request(http.MethodGet, "/stories", ada, nil, ""))

	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, page, "Old public")
	assert.Contains(t, page, "New public")
	assert.NotContains(t, page, "Hidden")
	assert.Contains(t, page, "Grace") // owner joined into the listing
	assert.Less(t, strings.Index(page, "New public"), strings.Index(page, "Old public"))
}

func TestUserIndexFiltersOwnerAndVisibility(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	grace := seedUser(t, h.DB, "Grace")

	now := time.Now()
	seedStory(t, h.DB, ada, "Ada public", models.StatusPublic, now)
	seedStory(t, h.DB, ada, "Ada secret", models.StatusPrivate, now)
	seedStory(t, h.DB, grace, "Grace public", models.StatusPublic, now)

	// Grace browses Ada's stories: the private one is absent, no error.
	w := httptest.NewRecorder()
	h.UserIndex(w, request(http.MethodGet, "/stories/user/"+fmtUint(ada.ID), grace, nil, fmtUint(ada.ID)))

	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, page, "Ada public")
	assert.NotContains(t, page, "Ada secret")
	assert.NotContains(t, page, "Grace public")
}

func TestShowRendersStoryWithOwner(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	w := httptest.NewRecorder()
	h.Show(w, request(http.MethodGet, "/stories/"+fmtUint(story.ID), ada, nil, fmtUint(story.ID)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "First day")
	assert.Contains(t, w.Body.String(), "Ada")
}

func TestShowMissingStoryIsNotFound(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")

	w := httptest.NewRecorder()
	h.Show(w, request(http.MethodGet, "/stories/999", ada, nil, "999"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowDoesNotRecheckVisibility(t *testing.T) {
	// Parity with the original: a private story's direct link is readable
	// by any signed-in caller.
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	grace := seedUser(t, h.DB, "Grace")
	story := seedStory(t, h.DB, ada, "Ada secret", models.StatusPrivate, time.Now())

	w := httptest.NewRecorder()
	h.Show(w, request(http.MethodGet, "/stories/"+fmtUint(story.ID), grace, nil, fmtUint(story.ID)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ada secret")
}

func TestEditFormOwnerOnly(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	grace := seedUser(t, h.DB, "Grace")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	w := httptest.NewRecorder()
	h.EditForm(w, request(http.MethodGet, "/stories/edit/"+fmtUint(story.ID), ada, nil, fmtUint(story.ID)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "First day")

	// Non-owner: silent redirect to the public listing.
	w = httptest.NewRecorder()
	h.EditForm(w, request(http.MethodGet, "/stories/edit/"+fmtUint(story.ID), grace, nil, fmtUint(story.ID)))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/stories", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	h.EditForm(w, request(http.MethodGet, "/stories/edit/999", ada, nil, "999"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateAppliesAllowListedFields(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	w := httptest.NewRecorder()
	h.Update(w, request(http.MethodPut, "/stories/"+fmtUint(story.ID), ada, url.Values{
		"title":  {"Revised"},
		"body":   {"New body"},
		"status": {"private"},
	}, fmtUint(story.ID)))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	var got models.Story
	require.NoError(t, h.DB.First(&got, story.ID).Error)
	assert.Equal(t, "Revised", got.Title)
	assert.Equal(t, "New body", got.Body)
	assert.Equal(t, models.StatusPrivate, got.Status)
}

func TestUpdateCannotChangeOwner(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	grace := seedUser(t, h.DB, "Grace")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	// A crafted form smuggling an owner field is ignored by the allow-list.
	w := httptest.NewRecorder()
	h.Update(w, request(http.MethodPut, "/stories/"+fmtUint(story.ID), ada, url.Values{
		"title":   {"Revised"},
		"body":    {"New body"},
		"status":  {"public"},
		"user_id": {fmtUint(grace.ID)},
		"user":    {fmtUint(grace.ID)},
	}, fmtUint(story.ID)))

	assert.Equal(t, http.StatusFound, w.Code)
	var got models.Story
	require.NoError(t, h.DB.First(&got, story.ID).Error)
	assert.Equal(t, ada.ID, got.UserID)
}

func TestUpdateByNonOwnerLeavesRecordUntouched(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	grace := seedUser(t, h.DB, "Grace")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	w := httptest.NewRecorder()
	h.Update(w, request(http.MethodPut, "/stories/"+fmtUint(story.ID), grace, url.Values{
		"title":  {"Hijacked"},
		"body":   {"New body"},
		"status": {"public"},
	}, fmtUint(story.ID)))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/stories", w.Header().Get("Location"))

	var got models.Story
	require.NoError(t, h.DB.First(&got, story.ID).Error)
	assert.Equal(t, "First day", got.Title)
	assert.Equal(t, ada.ID, got.UserID)
}

func TestUpdateMissingStoryIsNotFound(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")

	w := httptest.NewRecorder()
	h.Update(w, request(http.MethodPut, "/stories/999", ada, url.Values{
		"title": {"x"}, "body": {"y"}, "status": {"public"},
	}, "999"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	w := httptest.NewRecorder()
	h.Update(w, request(http.MethodPut, "/stories/"+fmtUint(story.ID), ada, url.Values{
		"title": {""}, "body": {"y"}, "status": {"public"},
	}, fmtUint(story.ID)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var got models.Story
	require.NoError(t, h.DB.First(&got, story.ID).Error)
	assert.Equal(t, "First day", got.Title)
}

func TestDeleteIsPermanentAndIdempotent(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	w := httptest.NewRecorder()
	h.Delete(w, request(http.MethodDelete, "/stories/"+fmtUint(story.ID), ada, nil, fmtUint(story.ID)))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	err := h.DB.First(&models.Story{}, story.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Fetching the deleted story renders not-found.
	w = httptest.NewRecorder()
	h.Show(w, request(http.MethodGet, "/stories/"+fmtUint(story.ID), ada, nil, fmtUint(story.ID)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Deleting again takes the same not-found path.
	w = httptest.NewRecorder()
	h.Delete(w, request(http.MethodDelete, "/stories/"+fmtUint(story.ID), ada, nil, fmtUint(story.ID)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteByNonOwnerRedirectsToDashboard(t *testing.T) {
	h := newTestHandler(t)
	ada := seedUser(t, h.DB, "Ada")
	grace := seedUser(t, h.DB, "Grace")
	story := seedStory(t, h.DB, ada, "First day", models.StatusPublic, time.Now())

	w := httptest.NewRecorder()
	h.Delete(w, request(http.MethodDelete, "/stories/"+fmtUint(story.ID), grace, nil, fmtUint(story.ID)))

	// Denial target differs from Update's on purpose.
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	var count int64
	h.DB.Model(&models.Story{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

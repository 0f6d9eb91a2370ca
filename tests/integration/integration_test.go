package integration_test

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-minisdb/internal/config"
	"github.com/localnerve/jam-build-minisdb/internal/database"
	"github.com/localnerve/jam-build-minisdb/internal/handlers"
	"github.com/localnerve/jam-build-minisdb/internal/middleware"
	"github.com/localnerve/jam-build-minisdb/internal/models"
	"github.com/localnerve/jam-build-minisdb/internal/pose"
	"github.com/localnerve/jam-build-minisdb/internal/services"
	"github.com/localnerve/jam-build-minisdb/internal/types"
	"github.com/localnerve/jam-build-minisdb/tests/helpers"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// TestWithMariaDB tests the service with a real MariaDB container
func TestWithMariaDB(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start MariaDB container
	mariadbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        os.Getenv("DB_IMAGE"),
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "rootpass",
				"MYSQL_DATABASE":      "testdb",
				"MYSQL_USER":          "testuser",
				"MYSQL_PASSWORD":      "testpass",
			},
			WaitingFor: wait.ForLog("ready for connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MariaDB container: %v", err)
	}
	defer func() {
		if err := mariadbContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate MariaDB container: %v", err)
		}
	}()

	host, err := mariadbContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := mariadbContainer.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:               "mysql",
		DBHost:               host,
		DBPort:               port.Port(),
		DBAppDatabase:        "testdb",
		DBAppUser:            "testuser",
		DBAppPassword:        "testpass",
		DBAppConnectionLimit: 5,
	}

	// Wait for database to be ready
	time.Sleep(5 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	runScenarios(t, db)
}

// TestWithPostgreSQL tests the service with a real PostgreSQL container
func TestWithPostgreSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Start PostgreSQL container
	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        os.Getenv("POSTGRES_IMAGE"),
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_USER":     "testuser",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.Config{
		DBType:               "postgres",
		DBHost:               host,
		DBPort:               port.Port(),
		DBAppDatabase:        "testdb",
		DBAppUser:            "testuser",
		DBAppPassword:        "testpass",
		DBAppConnectionLimit: 5,
	}

	// Wait for database to be ready
	time.Sleep(2 * time.Second)

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	runScenarios(t, db)
}

func runScenarios(t *testing.T, db *gorm.DB) {
	t.Run("SaveDeduplicatesByPose", func(t *testing.T) {
		testSaveDeduplicatesByPose(t, db)
	})

	t.Run("LinkNamePatching", func(t *testing.T) {
		testLinkNamePatching(t, db)
	})

	t.Run("PoseLookupQuantizes", func(t *testing.T) {
		testPoseLookupQuantizes(t, db)
	})

	t.Run("LibraryListing", func(t *testing.T) {
		testLibraryListing(t, db)
	})

	t.Run("NicknameUniqueness", func(t *testing.T) {
		testNicknameUniqueness(t, db)
	})

	t.Run("ProfileHandler204", func(t *testing.T) {
		testProfileHandler204(t, db)
	})
}

func savePose(lat, lng, heading, pitch, fov float64) pose.Pose {
	return pose.Pose{Lat: lat, Lng: lng, Heading: heading, Pitch: pitch, Fov: fov}
}

// testSaveDeduplicatesByPose verifies two users saving the same view share
// one miniature row, and the first writer owns the content.
func testSaveDeduplicatesByPose(t *testing.T, db *gorm.DB) {
	p := savePose(40.7580001, -73.9855002, 12.5, -3.25, 75)

	firstID, err := services.SaveMiniature(db, "user-dedupe-a", services.SaveMiniatureInput{
		Pose:         p,
		LocationName: "Times Square",
		ImageURL:     "https://cdn.example.com/a.png",
		Prompt:       "tilt-shift miniature of Times Square",
		Mode:         models.ModeGemini,
	})
	if err != nil {
		t.Fatalf("Failed first save: %v", err)
	}

	// Same pose within rounding noise, different metadata, different user
	secondID, err := services.SaveMiniature(db, "user-dedupe-b", services.SaveMiniatureInput{
		Pose:         savePose(40.75800012, -73.98550018, 12.5000004, -3.2499996, 75.0000002),
		LocationName: "Somewhere Else",
		ImageURL:     "https://cdn.example.com/b.png",
		Prompt:       "different prompt",
		Mode:         models.ModePassthrough,
	})
	if err != nil {
		t.Fatalf("Failed second save: %v", err)
	}

	if firstID != secondID {
		t.Fatalf("Expected both saves to converge on one miniature, got %d and %d", firstID, secondID)
	}

	mini, err := services.GetMiniatureByPose(db, p)
	if err != nil {
		t.Fatalf("Failed pose lookup: %v", err)
	}
	if mini.ImageURL != "https://cdn.example.com/a.png" {
		t.Errorf("Expected first writer's image to win, got %s", mini.ImageURL)
	}
	if mini.CreatedBy == nil || *mini.CreatedBy != "user-dedupe-a" {
		t.Errorf("Expected creator user-dedupe-a, got %v", mini.CreatedBy)
	}

	var linkCount int64
	db.Model(&models.UserMiniature{}).Where("miniature_id = ?", firstID).Count(&linkCount)
	if linkCount != 2 {
		t.Errorf("Expected 2 library links, got %d", linkCount)
	}
}

// testLinkNamePatching verifies the display name defaults on first save and
// only changes when a different non-empty name arrives.
func testLinkNamePatching(t *testing.T, db *gorm.DB) {
	p := savePose(51.5007, -0.1246, 0, 0, 90)
	userID := "user-name-patch"

	id, err := services.SaveMiniature(db, userID, services.SaveMiniatureInput{
		Pose:         p,
		LocationName: "Big Ben",
		ImageURL:     "https://cdn.example.com/bigben.png",
		Mode:         models.ModeGemini,
	})
	if err != nil {
		t.Fatalf("Failed save: %v", err)
	}

	var link models.UserMiniature
	if err := db.Where("user_id = ? AND miniature_id = ?", userID, id).First(&link).Error; err != nil {
		t.Fatalf("Failed to load link: %v", err)
	}
	if link.Name != "Big Ben" {
		t.Errorf("Expected name to default to location, got %q", link.Name)
	}

	// Repeat save with no name keeps the stored one
	if _, err := services.SaveMiniature(db, userID, services.SaveMiniatureInput{
		Pose:         p,
		LocationName: "Big Ben",
		ImageURL:     "https://cdn.example.com/bigben.png",
		Mode:         models.ModeGemini,
	}); err != nil {
		t.Fatalf("Failed repeat save: %v", err)
	}
	db.Where("user_id = ? AND miniature_id = ?", userID, id).First(&link)
	if link.Name != "Big Ben" {
		t.Errorf("Expected name unchanged on nameless repeat save, got %q", link.Name)
	}

	// Repeat save with a new name patches it
	if _, err := services.SaveMiniature(db, userID, services.SaveMiniatureInput{
		Pose:         p,
		LocationName: "Big Ben",
		ImageURL:     "https://cdn.example.com/bigben.png",
		Mode:         models.ModeGemini,
		Name:         "Clock Tower",
	}); err != nil {
		t.Fatalf("Failed renaming save: %v", err)
	}
	db.Where("user_id = ? AND miniature_id = ?", userID, id).First(&link)
	if link.Name != "Clock Tower" {
		t.Errorf("Expected name patched to Clock Tower, got %q", link.Name)
	}
}

// testPoseLookupQuantizes verifies the public lookup matches poses that
// round to the same key and misses those that do not.
func testPoseLookupQuantizes(t *testing.T, db *gorm.DB) {
	p := savePose(35.6595, 139.7005, 271.125456, 10.987654, 60)

	if _, err := services.SaveMiniature(db, "user-pose-lookup", services.SaveMiniatureInput{
		Pose:         p,
		LocationName: "Shibuya Crossing",
		ImageURL:     "https://cdn.example.com/shibuya.png",
		Mode:         models.ModeVertex,
	}); err != nil {
		t.Fatalf("Failed save: %v", err)
	}

	// Hit: differs beyond the sixth decimal
	near := savePose(35.6595, 139.7005, 271.1254561, 10.9876539, 60)
	if _, err := services.GetMiniatureByPose(db, near); err != nil {
		t.Errorf("Expected lookup hit for near pose: %v", err)
	}

	// Miss: differs at the sixth decimal
	far := savePose(35.6595, 139.7005, 271.125457, 10.987654, 60)
	if _, err := services.GetMiniatureByPose(db, far); err == nil {
		t.Error("Expected lookup miss for distinct pose")
	} else if err.Error() != "not found" {
		t.Errorf("Expected not found, got %v", err)
	}
}

// testLibraryListing verifies ordering by link recency and public creator
// profile attachment.
func testLibraryListing(t *testing.T, db *gorm.DB) {
	creator := "user-listing-creator"
	viewer := "user-listing-viewer"

	// Creator with a public profile
	if _, err := services.UpsertProfile(db, creator, "mapmaker", true, "https://cdn.example.com/face.png"); err != nil {
		t.Fatalf("Failed to create creator profile: %v", err)
	}

	first := savePose(48.8584, 2.2945, 45, 5, 80)
	second := savePose(48.8606, 2.3376, 90, 0, 70)

	if _, err := services.SaveMiniature(db, creator, services.SaveMiniatureInput{
		Pose: first, LocationName: "Eiffel Tower",
		ImageURL: "https://cdn.example.com/eiffel.png", Mode: models.ModeGemini,
	}); err != nil {
		t.Fatalf("Failed creator save: %v", err)
	}

	// Viewer saves the creator's miniature, then one of their own
	if _, err := services.SaveMiniature(db, viewer, services.SaveMiniatureInput{
		Pose: first, LocationName: "Eiffel Tower",
		ImageURL: "https://cdn.example.com/eiffel.png", Mode: models.ModeGemini,
	}); err != nil {
		t.Fatalf("Failed viewer save: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := services.SaveMiniature(db, viewer, services.SaveMiniatureInput{
		Pose: second, LocationName: "Louvre",
		ImageURL: "https://cdn.example.com/louvre.png", Mode: models.ModeGemini,
	}); err != nil {
		t.Fatalf("Failed viewer second save: %v", err)
	}

	entries, err := services.ListMyMiniatures(db, viewer)
	if err != nil {
		t.Fatalf("Failed listing: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	// Most recent link first
	if entries[0].LocationName != "Louvre" {
		t.Errorf("Expected Louvre first, got %s", entries[0].LocationName)
	}

	// Creator's public profile rides along on the shared miniature
	eiffel := entries[1]
	if eiffel.Creator == nil {
		t.Fatal("Expected creator profile attached")
	}
	if eiffel.Creator.Nickname == nil || *eiffel.Creator.Nickname != "mapmaker" {
		t.Errorf("Expected creator nickname mapmaker, got %v", eiffel.Creator.Nickname)
	}

	// Flip the creator private and the profile disappears from listings
	if _, err := services.UpsertProfile(db, creator, "mapmaker", false, ""); err != nil {
		t.Fatalf("Failed to make profile private: %v", err)
	}
	entries, err = services.ListMyMiniatures(db, viewer)
	if err != nil {
		t.Fatalf("Failed relisting: %v", err)
	}
	if entries[1].Creator != nil {
		t.Error("Expected private creator profile to be omitted")
	}
}

// testNicknameUniqueness verifies strict conflicts and soft derivation.
func testNicknameUniqueness(t *testing.T, db *gorm.DB) {
	if _, err := services.UpsertProfile(db, "user-nick-a", "Skyline", true, ""); err != nil {
		t.Fatalf("Failed first profile: %v", err)
	}

	// Same name, different case, different user
	_, err := services.UpsertProfile(db, "user-nick-b", "skyline", true, "")
	if err == nil {
		t.Fatal("Expected nickname conflict")
	}
	if !strings.HasPrefix(err.Error(), "E_NICKNAME_TAKEN") {
		t.Errorf("Expected E_NICKNAME_TAKEN, got %v", err)
	}

	// Owner can re-save their own name
	if _, err := services.UpsertProfile(db, "user-nick-a", "SKYLINE", false, ""); err != nil {
		t.Errorf("Expected owner re-save to succeed: %v", err)
	}

	// Invalid name fails strict
	if _, err := services.UpsertProfile(db, "user-nick-c", "x", true, ""); err == nil {
		t.Error("Expected E_NICKNAME_INVALID for short nickname")
	}

	// Soft derivation absorbs the conflict and still creates the profile
	profile, err := services.EnsureProfileFromIdentity(db, types.Identity{
		Subject:           "user-nick-d",
		PreferredUsername: "Skyline",
	})
	if err != nil {
		t.Fatalf("Expected soft ensure to succeed: %v", err)
	}
	if profile.Nickname != nil {
		t.Errorf("Expected no nickname assignment on soft conflict, got %v", *profile.Nickname)
	}
}

// testProfileHandler204 verifies the profile GET returns 204 before any
// profile exists.
func testProfileHandler204(t *testing.T, db *gorm.DB) {
	app := fiber.New()

	// Stub identity middleware
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.IdentityKey, &types.Identity{Subject: "user-204"})
		return c.Next()
	})

	handler := &handlers.ProfileHandler{DB: db}
	app.Get("/api/profile", handler.GetMyProfile)
	app.Post("/api/profile", handler.UpsertProfile)

	req := httptest.NewRequest("GET", "/api/profile", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed request: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusNoContent)
	helpers.AssertNoContent(t, resp)

	// Create a profile, then the GET returns it
	req = httptest.NewRequest("POST", "/api/profile",
		strings.NewReader(`{"nickname":"roamer204","isPublic":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed create request: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	req = httptest.NewRequest("GET", "/api/profile", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed read request: %v", err)
	}
	helpers.AssertStatus(t, resp, fiber.StatusOK)

	var profile models.UserProfile
	helpers.ParseJSON(t, resp, &profile)
	if profile.Nickname == nil || *profile.Nickname != "roamer204" {
		t.Errorf("Expected nickname roamer204, got %v", profile.Nickname)
	}
}

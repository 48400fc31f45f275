// Seeds the registry with the baseline technology graph and a handful of
// demo patterns so a fresh deployment has something to match against.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"errorshare/backend/internal/config"
	"errorshare/backend/internal/logging"
	"errorshare/backend/internal/normalize"
	"errorshare/backend/internal/repository"
	"errorshare/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	registry := repository.NewPostgresRegistry(pool)

	// 1. Technology graph nodes. UpsertTechnology is idempotent on slug.
	technologies := []models.Technology{
		{Slug: "go", Name: "Go", Kind: models.TechnologyLanguage},
		{Slug: "python", Name: "Python", Kind: models.TechnologyLanguage},
		{Slug: "typescript", Name: "TypeScript", Kind: models.TechnologyLanguage},
		{Slug: "echo", Name: "Echo", Kind: models.TechnologyFramework},
		{Slug: "gin", Name: "Gin", Kind: models.TechnologyFramework},
		{Slug: "fastapi", Name: "FastAPI", Kind: models.TechnologyFramework},
		{Slug: "flask", Name: "Flask", Kind: models.TechnologyFramework},
		{Slug: "requests", Name: "Requests", Kind: models.TechnologyTool},
		{Slug: "httpx", Name: "HTTPX", Kind: models.TechnologyTool},
		{Slug: "pip", Name: "pip", Kind: models.TechnologyTool},
	}
	for i := range technologies {
		if _, err := registry.UpsertTechnology(ctx, &technologies[i]); err != nil {
			log.Fatalf("Failed to seed technology %q: %v", technologies[i].Slug, err)
		}
	}
	logger.Info("Seeded technologies", "count", len(technologies))

	// 2. Technology edges. Duplicates come back as ErrConflict and are skipped.
	edges := []models.TechnologyRelationship{
		{FromSlug: "echo", ToSlug: "go", RelationshipType: models.TechDependency},
		{FromSlug: "gin", ToSlug: "go", RelationshipType: models.TechDependency},
		{FromSlug: "echo", ToSlug: "gin", RelationshipType: models.TechAlternative},
		{FromSlug: "gin", ToSlug: "echo", RelationshipType: models.TechAlternative},
		{FromSlug: "fastapi", ToSlug: "python", RelationshipType: models.TechDependency},
		{FromSlug: "flask", ToSlug: "python", RelationshipType: models.TechDependency},
		{FromSlug: "flask", ToSlug: "fastapi", RelationshipType: models.TechMigrationTarget},
		{FromSlug: "requests", ToSlug: "httpx", RelationshipType: models.TechMigrationTarget},
		{FromSlug: "httpx", ToSlug: "requests", RelationshipType: models.TechAlternative},
		{FromSlug: "pip", ToSlug: "python", RelationshipType: models.TechComplementary},
	}
	seededEdges := 0
	for i := range edges {
		err := registry.CreateTechnologyRelationship(ctx, &edges[i])
		if err != nil {
			logger.Info("Skipping existing edge",
				"from", edges[i].FromSlug, "to", edges[i].ToSlug, "type", edges[i].RelationshipType)
			continue
		}
		seededEdges++
	}
	logger.Info("Seeded technology edges", "count", seededEdges)

	// 3. Demo patterns. Upserting an existing signature only bumps its
	// occurrence count, so reruns stay harmless.
	demos := []struct {
		message   string
		category  string
		language  string
		framework string
	}{
		{
			message:  "ModuleNotFoundError: No module named 'requests'",
			category: "import_error",
			language: "python",
		},
		{
			message:  "TypeError: cannot unmarshal string into Go value of type int",
			category: "type_error",
			language: "go",
		},
		{
			message:   "connection refused: dial tcp 127.0.0.1:5432",
			category:  "connection_error",
			language:  "go",
			framework: "echo",
		},
	}
	for _, d := range demos {
		p := &models.Pattern{
			Signature:   normalize.Signature(d.category, d.message),
			Category:    d.category,
			Language:    d.language,
			Description: normalize.Message(d.message),
			Anonymized:  true,
			Severity:    models.SeverityMedium,
		}
		if d.framework != "" {
			p.Framework = &d.framework
		}
		stored, err := registry.UpsertPattern(ctx, p, "")
		if err != nil {
			log.Fatalf("Failed to seed pattern: %v", err)
		}
		logger.Info("Seeded pattern", "signature", stored.Signature)
	}

	logger.Info("Seeding complete")
}

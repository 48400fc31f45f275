package models

import "time"

// TechnologyKind classifies a node in the technology reference graph.
type TechnologyKind string

const (
	TechnologyLanguage  TechnologyKind = "language"
	TechnologyFramework TechnologyKind = "framework"
	TechnologyTool      TechnologyKind = "tool"
)

// TechRelationshipType is the type of a directed technology edge.
type TechRelationshipType string

const (
	TechDependency      TechRelationshipType = "dependency"
	TechAlternative     TechRelationshipType = "alternative"
	TechComplementary   TechRelationshipType = "complementary"
	TechMigrationTarget TechRelationshipType = "migration_target"
)

// Technology is a node in the mostly static reference graph of languages,
// frameworks and tools.
type Technology struct {
	ID        string         `json:"id" db:"id"`
	Slug      string         `json:"slug" db:"slug"`
	Name      string         `json:"name" db:"name"`
	Kind      TechnologyKind `json:"kind" db:"kind"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// TechnologyRelationship is a typed edge between two technologies.
type TechnologyRelationship struct {
	ID               string               `json:"id" db:"id"`
	FromSlug         string               `json:"from_slug" db:"from_slug"`
	ToSlug           string               `json:"to_slug" db:"to_slug"`
	RelationshipType TechRelationshipType `json:"relationship_type" db:"relationship_type"`
	CreatedAt        time.Time            `json:"created_at" db:"created_at"`
}

// RelatedTechnology is a technology reached by a graph traversal, annotated
// with the edge type that connected it.
type RelatedTechnology struct {
	Technology       *Technology          `json:"technology"`
	RelationshipType TechRelationshipType `json:"relationship_type"`
}

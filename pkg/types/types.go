// Package types defines the core data structures for the Cortex knowledge
// analysis engine: memories, entities, typed relationships, clusters,
// metric samples, anomalies, insights and knowledge gaps.
package types

// Relationship dimension constants. Each pairwise memory comparison produces
// one score per dimension; the dimension with the highest score becomes the
// relationship's primary type.
const (
	DimensionSemantic   = "semantic"
	DimensionCausal     = "causal"
	DimensionHierarchy  = "hierarchy"
	DimensionContent    = "content"
	DimensionContextual = "contextual"
	DimensionTemporal   = "temporal"
)

// DimensionPriority is the fixed tie-break order for selecting a primary
// relationship type when two dimensions score equally. Earlier entries win:
// meaningful relations (semantic, causal) beat incidental ones (temporal).
var DimensionPriority = []string{
	DimensionSemantic,
	DimensionCausal,
	DimensionHierarchy,
	DimensionContent,
	DimensionContextual,
	DimensionTemporal,
}

// Relationship strength buckets derived from the composite score.
const (
	StrengthStrong   = "strong"   // composite >= 0.75
	StrengthModerate = "moderate" // composite >= 0.45
	StrengthWeak     = "weak"     // anything above the persistence threshold
)

// Entity type constants.
const (
	EntityTypePerson       = "person"
	EntityTypeOrganization = "organization"
	EntityTypeProject      = "project"
	EntityTypeLocation     = "location"
	EntityTypeEvent        = "event"
	EntityTypeConcept      = "concept"
	EntityTypeTool         = "tool"
	EntityTypeTopic        = "topic"
)

// ValidEntityTypes is a slice of all valid entity types for validation.
var ValidEntityTypes = []string{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeProject,
	EntityTypeLocation,
	EntityTypeEvent,
	EntityTypeConcept,
	EntityTypeTool,
	EntityTypeTopic,
}

// Memory type constants - classify the purpose/nature of a memory.
const (
	MemoryTypeNote     = "note"
	MemoryTypeDecision = "decision"
	MemoryTypeEvent    = "event"
	MemoryTypeConcept  = "concept"
	MemoryTypePerson   = "person"
	MemoryTypeTask     = "task"
)

// ValidMemoryTypes is a slice of all valid memory types for validation.
var ValidMemoryTypes = []string{
	MemoryTypeNote,
	MemoryTypeDecision,
	MemoryTypeEvent,
	MemoryTypeConcept,
	MemoryTypePerson,
	MemoryTypeTask,
}

// Entity relationship type constants. The set is open-ended: extraction may
// emit other types, these cover the common ones.
const (
	RelTypeRelatedTo = "related_to"
	RelTypeWorksOn   = "works_on"
	RelTypeMentions  = "mentions"
	RelTypePartOf    = "part_of"
	RelTypeCauses    = "causes"
)

// Anomaly type constants.
const (
	AnomalySpike           = "spike"            // value significantly above the rolling mean
	AnomalyDrop            = "drop"             // value significantly below the rolling mean
	AnomalyPatternBreak    = "pattern_break"    // violates the expected periodic pattern
	AnomalyThresholdBreach = "threshold_breach" // crosses a configured hard limit
)

// Metric granularity constants for time-bucketed aggregation.
const (
	GranularityMinute  = "minute"
	GranularityHour    = "hour"
	GranularityDay     = "day"
	GranularityWeek    = "week"
	GranularityMonth   = "month"
	GranularityQuarter = "quarter"
	GranularityYear    = "year"
)

// ValidGranularities is a slice of all valid metric granularities.
var ValidGranularities = []string{
	GranularityMinute,
	GranularityHour,
	GranularityDay,
	GranularityWeek,
	GranularityMonth,
	GranularityQuarter,
	GranularityYear,
}

// Insight category constants.
const (
	InsightTrend        = "trend"
	InsightAnomaly      = "anomaly"
	InsightCluster      = "cluster"
	InsightKnowledgeGap = "knowledge_gap"
)

// Clustering algorithm constants.
const (
	AlgorithmKMeans       = "kmeans"
	AlgorithmDBSCAN       = "dbscan"
	AlgorithmHierarchical = "hierarchical"
)

// ValidAlgorithms is a slice of all valid clustering algorithms.
var ValidAlgorithms = []string{
	AlgorithmKMeans,
	AlgorithmDBSCAN,
	AlgorithmHierarchical,
}

// IsValidEntityType checks if the given entity type is valid.
func IsValidEntityType(entityType string) bool {
	for _, validType := range ValidEntityTypes {
		if validType == entityType {
			return true
		}
	}
	return false
}

// IsValidMemoryType checks if the given memory type is valid.
func IsValidMemoryType(memoryType string) bool {
	for _, validType := range ValidMemoryTypes {
		if validType == memoryType {
			return true
		}
	}
	return false
}

// IsValidDimension checks if the given dimension name is valid.
func IsValidDimension(dimension string) bool {
	for _, d := range DimensionPriority {
		if d == dimension {
			return true
		}
	}
	return false
}

// IsValidGranularity checks if the given granularity is valid.
func IsValidGranularity(granularity string) bool {
	for _, g := range ValidGranularities {
		if g == granularity {
			return true
		}
	}
	return false
}

// IsValidAlgorithm checks if the given clustering algorithm is valid.
func IsValidAlgorithm(algorithm string) bool {
	for _, a := range ValidAlgorithms {
		if a == algorithm {
			return true
		}
	}
	return false
}

package sqlite

// Schema contains the SQL statements to create the database schema.
// Uniqueness constraints back the atomic upsert semantics: concurrent
// upserts of the same entity or edge resolve at the database in a single
// conditional write, never read-modify-write in Go.
const Schema = `
-- Memories: read-mostly mirror of the external CRUD layer's records
CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    memory_type TEXT,
    tags TEXT,                -- JSON array
    importance_score REAL NOT NULL DEFAULT 0,
    metadata TEXT,            -- JSON object
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_memory_type ON memories(memory_type);

-- Embeddings: one vector per memory, serialized little-endian float64
CREATE TABLE IF NOT EXISTS embeddings (
    memory_id TEXT PRIMARY KEY,
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT,
    updated_at TIMESTAMP NOT NULL,
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);

-- Entities: (name, type) is logically unique; occurrence_count merges
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    occurrence_count INTEGER NOT NULL DEFAULT 1,
    importance_score REAL NOT NULL DEFAULT 0,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE(name, type)
);

-- Entity mentions: one row per observed occurrence inside a memory
CREATE TABLE IF NOT EXISTS entity_mentions (
    entity_id TEXT NOT NULL,
    memory_id TEXT NOT NULL,
    position_start INTEGER NOT NULL,
    position_end INTEGER NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_mentions_memory ON entity_mentions(memory_id);
CREATE INDEX IF NOT EXISTS idx_mentions_entity ON entity_mentions(entity_id);

-- Entity relationships: unique per (source, target, type); merged on conflict
CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    type TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0,
    weight REAL NOT NULL DEFAULT 1.0,
    occurrence_count INTEGER NOT NULL DEFAULT 1,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    FOREIGN KEY (source_id) REFERENCES entities(id) ON DELETE CASCADE,
    FOREIGN KEY (target_id) REFERENCES entities(id) ON DELETE CASCADE,
    UNIQUE(source_id, target_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);

-- Memory relationships: one row per unordered pair (source < target)
CREATE TABLE IF NOT EXISTS memory_relationships (
    source_memory_id TEXT NOT NULL,
    target_memory_id TEXT NOT NULL,
    composite_score REAL NOT NULL,
    semantic_score REAL NOT NULL DEFAULT 0,
    temporal_score REAL NOT NULL DEFAULT 0,
    content_score REAL NOT NULL DEFAULT 0,
    hierarchy_score REAL NOT NULL DEFAULT 0,
    causal_score REAL NOT NULL DEFAULT 0,
    contextual_score REAL NOT NULL DEFAULT 0,
    primary_type TEXT NOT NULL,
    strength TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (source_memory_id, target_memory_id)
);

CREATE INDEX IF NOT EXISTS idx_memrel_target ON memory_relationships(target_memory_id);

-- Metric samples: strictly increasing timestamps per series
CREATE TABLE IF NOT EXISTS metric_samples (
    metric_type TEXT NOT NULL,
    granularity TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (metric_type, granularity, timestamp)
);

-- Derived artifacts: append-only with soft expiry via superseded_at
CREATE TABLE IF NOT EXISTS clusters (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    algorithm TEXT NOT NULL,
    label TEXT,
    coherence_score REAL NOT NULL DEFAULT 0,
    parent_id TEXT,
    created_at TIMESTAMP NOT NULL,
    superseded_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cluster_members (
    cluster_id TEXT NOT NULL,
    memory_id TEXT NOT NULL,
    distance_to_centroid REAL NOT NULL DEFAULT 0,
    FOREIGN KEY (cluster_id) REFERENCES clusters(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cluster_members_cluster ON cluster_members(cluster_id);

CREATE TABLE IF NOT EXISTS anomalies (
    metric_type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    severity REAL NOT NULL,
    expected_value REAL NOT NULL,
    actual_value REAL NOT NULL,
    anomaly_type TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    superseded_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS insights (
    id TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    confidence REAL NOT NULL,
    impact_score REAL NOT NULL,
    timeframe TEXT,
    recommendations TEXT,     -- JSON array
    created_at TIMESTAMP NOT NULL,
    superseded_at TIMESTAMP
);
`

package db

import "fmt"

// SchemaSQL returns the database schema initialization SQL. The chunk
// embedding index dimension must match the embedding model in use, so the
// dimension is injected rather than hardcoded.
func SchemaSQL(embedDim int) string {
	return fmt.Sprintf(schemaTemplate, embedDim)
}

const schemaTemplate = `
    -- ==========================================================================
    -- JOB TABLE (durable ingestion queue)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS source_id ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS kind ON job TYPE string
        ASSERT $value IN ["video", "web", "document", "file"];
    DEFINE FIELD IF NOT EXISTS status ON job TYPE string
        ASSERT $value IN ["pending", "processing", "done", "failed"];
    DEFINE FIELD IF NOT EXISTS attempts ON job TYPE int DEFAULT 0 ASSERT $value >= 0;
    DEFINE FIELD IF NOT EXISTS next_run_at ON job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS lease_expires_at ON job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS last_error ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON job TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS job_status_next_run ON job FIELDS status, next_run_at;
    DEFINE INDEX IF NOT EXISTS job_source ON job FIELDS source_id;

    -- ==========================================================================
    -- SOURCE TABLE
    -- ==========================================================================
    -- Sources are created by source management; ingestion mutates the
    -- processing object and kind-specific metadata only.
    DEFINE TABLE IF NOT EXISTS source SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS kind ON source TYPE string
        ASSERT $value IN ["video", "web", "document", "file"];
    DEFINE FIELD IF NOT EXISTS locator ON source TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON source TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS processing ON source TYPE object FLEXIBLE DEFAULT { status: "pending" };
    DEFINE FIELD IF NOT EXISTS video ON source TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON source TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS source_kind ON source FIELDS kind;

    -- ==========================================================================
    -- CHUNK TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS source_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS chunk_index ON chunk TYPE int ASSERT $value >= 0;
    DEFINE FIELD IF NOT EXISTS text ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS start_time ON chunk TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS end_time ON chunk TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS token_count ON chunk TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS metadata ON chunk TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON chunk TYPE datetime DEFAULT time::now();
    -- (source_id, chunk_index) is unique: indices are dense from 0 per source
    DEFINE FIELD IF NOT EXISTS unique_key ON chunk VALUE <string>string::concat(source_id, ":", <string>chunk_index);
    DEFINE INDEX IF NOT EXISTS chunk_unique ON chunk FIELDS unique_key UNIQUE;

    DEFINE INDEX IF NOT EXISTS chunk_source ON chunk FIELDS source_id;
    DEFINE INDEX IF NOT EXISTS chunk_embedding ON chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`

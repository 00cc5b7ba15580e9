package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create contracts table
-- Version: 001

-- Local mirror of platform contracts. The platform owns the contract
-- lifecycle; the agent only tracks connected/disconnected state.
CREATE TABLE IF NOT EXISTS contracts (
    id BIGINT PRIMARY KEY,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    agent_token VARCHAR(64) NOT NULL,
    connected_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    disconnected_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('active', 'inactive')),
    CONSTRAINT valid_contract_id CHECK (id > 0)
);

CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status) WHERE status = 'active';
`

const migration001Down = `
DROP TABLE IF EXISTS contracts;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create course catalog tables
-- Version: 002

CREATE TABLE IF NOT EXISTS courses (
    id BIGINT PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_course_id CHECK (id > 0)
);

CREATE TABLE IF NOT EXISTS lessons (
    id BIGINT PRIMARY KEY,
    course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    ordinal INTEGER NOT NULL,
    title VARCHAR(200) NOT NULL,
    text TEXT NOT NULL DEFAULT '',

    CONSTRAINT valid_lesson_id CHECK (id > 0),
    CONSTRAINT valid_ordinal CHECK (ordinal >= 1),
    CONSTRAINT uq_lessons_course_ordinal UNIQUE (course_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_lessons_course_id ON lessons(course_id);

CREATE TABLE IF NOT EXISTS questions (
    id BIGINT PRIMARY KEY,
    lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    answer TEXT NOT NULL,
    points INTEGER NOT NULL DEFAULT 1,
    strict_case BOOLEAN NOT NULL DEFAULT FALSE,

    CONSTRAINT valid_points CHECK (points >= 0)
);

CREATE INDEX IF NOT EXISTS idx_questions_lesson_id ON questions(lesson_id);
`

const migration002Down = `
DROP TABLE IF EXISTS questions;
DROP TABLE IF EXISTS lessons;
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE LEDGERS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create enrollment and completion ledgers
-- Version: 003

CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
    course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    points INTEGER NOT NULL DEFAULT 0,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_enrollment_points CHECK (points >= 0),
    CONSTRAINT uq_enrollments_contract_course UNIQUE (contract_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_contract_id ON enrollments(contract_id);

-- One row per scored submission. The unique pair is the at-most-once
-- guarantee: a second submission hits the conflict and awards nothing.
CREATE TABLE IF NOT EXISTS lesson_completions (
    id UUID PRIMARY KEY,
    contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
    lesson_id BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    points INTEGER NOT NULL,
    max_points INTEGER NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_completion_points CHECK (points >= 0 AND points <= max_points),
    CONSTRAINT uq_completions_contract_lesson UNIQUE (contract_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_completions_contract_id ON lesson_completions(contract_id);
`

const migration003Down = `
DROP TABLE IF EXISTS lesson_completions;
DROP TABLE IF EXISTS enrollments;
`

package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'student',
	active BOOLEAN NOT NULL DEFAULT 1,
	last_login DATETIME,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS login_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	login_time DATETIME NOT NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quizzes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	created_by INTEGER NOT NULL REFERENCES users(id),
	difficulty TEXT NOT NULL DEFAULT 'beginner',
	duration_minutes INTEGER,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	qtype TEXT NOT NULL,
	text TEXT NOT NULL,
	marks INTEGER NOT NULL DEFAULT 1,
	body_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	quiz_id INTEGER NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
	student_id INTEGER NOT NULL REFERENCES users(id),
	started_at DATETIME NOT NULL,
	submitted_at DATETIME,
	completed BOOLEAN NOT NULL DEFAULT 0,
	score REAL NOT NULL DEFAULT 0,
	total REAL NOT NULL DEFAULT 0,
	percentage REAL NOT NULL DEFAULT 0,
	passed BOOLEAN NOT NULL DEFAULT 0,
	review_unlocked_at DATETIME,
	fullscreen_exit BOOLEAN NOT NULL DEFAULT 0,
	answered_count INTEGER NOT NULL DEFAULT 0,
	question_count INTEGER NOT NULL DEFAULT 0,
	full_completion BOOLEAN NOT NULL DEFAULT 0,
	UNIQUE (quiz_id, student_id)
);

CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	submission_id INTEGER NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	user_answer TEXT NOT NULL DEFAULT '',
	is_correct BOOLEAN,
	ai_score REAL,
	scored_marks REAL NOT NULL DEFAULT 0,
	code_language TEXT NOT NULL DEFAULT '',
	test_results_json TEXT NOT NULL DEFAULT '[]',
	passed_test_cases INTEGER NOT NULL DEFAULT 0,
	total_test_cases INTEGER NOT NULL DEFAULT 0,
	UNIQUE (submission_id, question_id)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'student',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	last_login TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS login_history (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	login_time TIMESTAMPTZ NOT NULL,
	ip_address TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quizzes (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	created_by BIGINT NOT NULL REFERENCES users(id),
	difficulty TEXT NOT NULL DEFAULT 'beginner',
	duration_minutes INTEGER,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	qtype TEXT NOT NULL,
	text TEXT NOT NULL,
	marks INTEGER NOT NULL DEFAULT 1,
	body_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id BIGSERIAL PRIMARY KEY,
	quiz_id BIGINT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES users(id),
	started_at TIMESTAMPTZ NOT NULL,
	submitted_at TIMESTAMPTZ,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	total DOUBLE PRECISION NOT NULL DEFAULT 0,
	percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	passed BOOLEAN NOT NULL DEFAULT FALSE,
	review_unlocked_at TIMESTAMPTZ,
	fullscreen_exit BOOLEAN NOT NULL DEFAULT FALSE,
	answered_count INTEGER NOT NULL DEFAULT 0,
	question_count INTEGER NOT NULL DEFAULT 0,
	full_completion BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (quiz_id, student_id)
);

CREATE TABLE IF NOT EXISTS answers (
	id BIGSERIAL PRIMARY KEY,
	submission_id BIGINT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	user_answer TEXT NOT NULL DEFAULT '',
	is_correct BOOLEAN,
	ai_score DOUBLE PRECISION,
	scored_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
	code_language TEXT NOT NULL DEFAULT '',
	test_results_json TEXT NOT NULL DEFAULT '[]',
	passed_test_cases INTEGER NOT NULL DEFAULT 0,
	total_test_cases INTEGER NOT NULL DEFAULT 0,
	UNIQUE (submission_id, question_id)
);
`

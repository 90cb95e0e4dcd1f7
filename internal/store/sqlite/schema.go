package sqlite

// Timestamps are TEXT in store.TimeLayout, booleans INTEGER 0/1.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workouts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS exercises (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    workout_id TEXT NOT NULL,
    num_sets INTEGER NOT NULL DEFAULT 4,
    has_warmup INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
);`,
	`CREATE TABLE IF NOT EXISTS sets (
    id TEXT PRIMARY KEY,
    exercise_id TEXT NOT NULL,
    workout_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    sets INTEGER NOT NULL,
    reps INTEGER NOT NULL,
    weight REAL NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (exercise_id) REFERENCES exercises(id) ON DELETE CASCADE,
    FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
);`,
	`CREATE TABLE IF NOT EXISTS exercise_notes (
    id TEXT PRIMARY KEY,
    exercise_id TEXT NOT NULL,
    note TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (exercise_id) REFERENCES exercises(id) ON DELETE CASCADE
);`,
	`CREATE TABLE IF NOT EXISTS workout_sessions (
    session_id TEXT PRIMARY KEY,
    workout_id TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    FOREIGN KEY (workout_id) REFERENCES workouts(id) ON DELETE CASCADE
);`,
	`CREATE INDEX IF NOT EXISTS idx_exercises_workout ON exercises (workout_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sets_exercise ON sets (exercise_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_sets_session ON sets (session_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sets_workout ON sets (workout_id);`,
	`CREATE INDEX IF NOT EXISTS idx_notes_exercise ON exercise_notes (exercise_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_workout ON workout_sessions (workout_id, completed_at);`,
}

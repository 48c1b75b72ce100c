// Package core provides the import engine for workout CSV exports.
//
// The engine turns a byte buffer of unknown provenance into a normalized
// table of workout data. It has no UI, storage, or network dependencies and
// can be used by web handlers, the CLI, or tests without modification.
//
// # Pipeline
//
// Every call runs the same linear sequence of stages:
//
//  1. Detect: [EncodingDetector] picks the most likely text encoding using
//     byte-order marks, a scored trial decode, and a statistical fallback.
//  2. Read: [TableReader] decodes and parses the CSV, cascading through the
//     candidate encodings until the header row reads as plausible text.
//  3. Normalize headers: [HeaderNormalizer] maps garbled or localized column
//     names to canonical keys such as "avg_pace".
//  4. Classify: [ClassifyFormat] decides between a device lap export and a
//     generic date/type/distance/time sheet.
//  5. Validate: [ValidateRows] counts structurally valid rows.
//  6. Extract and analyze: device rows become one [WorkoutImportRecord];
//     [AnalyzeLaps] labels laps as fast or rest and estimates a workout type.
//  7. Sanitize: [Sanitize] strips NaN and infinite values so results can be
//     serialized anywhere.
//
// No state survives between calls. An [Engine] is safe for concurrent use.
//
// # Static Tables
//
// Header aliases, garbled-text fragments and the keyword fallback table live
// in an immutable [Catalog]. Scoring weights and lap thresholds live in
// [Heuristics]. Both are passed by reference into each component so the
// scoring policy can be tuned and tested independently of the algorithms.
//
// # Error Handling
//
// Only three conditions stop a call: [ErrEmptyFile], [ErrUnsupportedFormat]
// and [ErrDecodeExhausted]. Everything else degrades gracefully and is
// reported as a [Warning]. Technical errors are mapped to user-facing text
// with [MapError].
package core

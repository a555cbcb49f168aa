// Package mediapipeline implements the asynchronous media processing and
// storage replication pipeline behind PhotoVault.
//
// The package is organized around a small set of collaborators:
//
//   - Gateway: uniform put/get/delete/exists over a pluggable ObjectStore
//     (local filesystem, S3-compatible object storage, or in-memory), producing
//     CDN-resolvable URLs and stable object keys.
//   - image.Processor / video.Processor: transform stages that derive
//     thumbnail, preview and optimized renditions from uploaded originals and
//     extract intrinsic metadata.
//   - events.Publisher / events.Dispatcher: Kafka-backed fan-out that decouples
//     upload from processing. Events are keyed by asset id and routed to one of
//     three topics by workload.
//   - backup.Replicator: scheduled job that copies every object in the primary
//     store into a date-partitioned backup store and prunes backups past the
//     retention window.
//
// The pipeline does not own asset lifecycle. It reads and writes Asset records
// through the AssetStore interface and only ever transitions the processing
// state and derived fields.
package mediapipeline

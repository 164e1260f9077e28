// Package connectors provides document sources that feed the ingestion
// service. Each connector turns an external location into domain.RawUpload
// values and, where the source supports it, a stream of domain.RawChange.
package connectors

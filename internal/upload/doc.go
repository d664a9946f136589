// Package upload moves a finished recording to remote object storage with
// the service's multipart protocol.
//
// A blob of S bytes is cut into ceil(S/C) parts of C bytes (the last part
// may be shorter). Parts are presigned and PUT strictly in order, progress is
// reported after each acknowledged part, and the part list is checked for
// contiguity before the upload is completed. There is no partial resume: a
// failed upload is retried from initiate.
package upload

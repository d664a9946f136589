// Package capapi is the HTTP client for the remote recording service.
//
// It covers the session check, artifact allocation and deletion, and the
// multipart upload calls (initiate, presign-part, complete) plus the raw PUT
// of part bodies to presigned storage URLs. Every failure is tagged with a
// services sentinel so callers can branch on errors.Is.
package capapi

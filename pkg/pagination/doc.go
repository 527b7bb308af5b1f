// Package pagination turns a Spark list endpoint into a lazy, restartable
// sequence of items.
//
// The service pages list responses with RFC 5988 Link headers. A Container
// captures the endpoint, its query parameters and an item decoder; each call
// to Iterator or All starts a fresh pass at page 1. Pages are fetched one at
// a time and only when the previous page has been fully consumed.
//
// Example usage:
//
//	members := pagination.New(sess, "team/memberships", params, decodeMembership)
//	for m, err := range members.All(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(m.PersonEmail)
//	}
//
// Iterating the same Container twice issues the requests twice. Items added
// or removed on the server between page fetches may be skipped or repeated
// within a pass.
//
// A failed page fetch (or item decode) is reported by the Next call that
// would have returned the next item. Items returned before the failure stay
// valid, and the error is sticky for the rest of the pass.
package pagination

package loadtest

import (
	"context"
	"errors"
	"fmt"
)

// verify checks that each identity's history holds exactly the records it was
// told were confirmed, and none of anyone else's.
func verify(ctx context.Context, client *HTTPClient, identities []string, confirmed map[string][]string) error {
	owner := make(map[string]string)
	for identity, ids := range confirmed {
		for _, id := range ids {
			owner[id] = identity
		}
	}

	var errs []error
	for _, identity := range identities {
		hist, err := client.history(ctx, identity)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", identity, err))
			continue
		}
		if want := len(confirmed[identity]); len(hist) != want {
			errs = append(errs, fmt.Errorf("%s: history has %d records, %d were confirmed", identity, len(hist), want))
		}
		for _, e := range hist {
			if o, ok := owner[e.ID]; ok && o != identity {
				errs = append(errs, fmt.Errorf("%s: record %s belongs to %s", identity, e.ID, o))
			}
		}
	}
	return errors.Join(errs...)
}

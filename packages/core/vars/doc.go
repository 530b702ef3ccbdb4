// Package vars implements the run-scoped variable store that cases use to
// hand extracted values to each other.
//
// A Store holds entries with an optional expiry. Expired entries are evicted
// lazily on read and are never observed after their deadline. Substitute
// replaces ${name} tokens in a string with stored values, and ${fn(args)}
// tokens with the result of a builtin function. Text such as "${ name }" is
// not a token and stays as written. PrepareData applies Substitute to every
// string leaf of a nested structure; map keys are not substituted.
//
// A Store is created per run and passed to the runner explicitly:
//
//	store := vars.NewStore(vars.WithWarnFunc(logger.Warn))
//	store.Set("token", "abc", time.Minute)
//	path := store.Substitute("/users/${user_id}")
package vars

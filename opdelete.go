package idb

// executeDelete removes every record whose key matches the query. Zero
// matches is not an error.
func executeDelete(store *storeData, op *operation) (any, error) {
	deletesDone.Inc()
	switch q := op.query.(type) {
	case *KeyRange:
		store.records.deleteRange(q)
	case []any:
		for _, key := range q {
			store.records.delete(key)
		}
	default:
		store.records.delete(q)
	}
	return nil, nil
}

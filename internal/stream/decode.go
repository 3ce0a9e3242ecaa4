package stream

// Decoded is the minimal information the ingester needs to recover from a
// push-collaborator Record: an address and a transaction hash. Either may
// be empty if the shape didn't yield one.
type Decoded struct {
	Address string
	TxHash  string
}

// DecodeRecord attempts a fixed sequence of shape matches against a
// push-collaborator payload, per the design note in spec §9: the source
// format is unspecified, so this decoder is deliberately tolerant rather
// than authoritative. Attempted shapes, in order:
//  1. a list — the first element is itself recursively decoded;
//  2. an object with a "logs" key — the first log entry is recursively decoded;
//  3. an object with a "transactionHash" (or "tx_hash"/"hash") key, optionally
//     alongside "address"/"from"/"to";
//  4. none of the above — returns a zero Decoded.
func DecodeRecord(rec Record) Decoded {
	switch v := rec.(type) {
	case []interface{}:
		if len(v) == 0 {
			return Decoded{}
		}
		return DecodeRecord(v[0])
	case map[string]interface{}:
		if logs, ok := v["logs"]; ok {
			if logList, ok := logs.([]interface{}); ok && len(logList) > 0 {
				return DecodeRecord(logList[0])
			}
		}
		d := Decoded{}
		for _, key := range []string{"transactionHash", "tx_hash", "hash"} {
			if s, ok := stringField(v, key); ok {
				d.TxHash = s
				break
			}
		}
		for _, key := range []string{"address", "from", "to"} {
			if s, ok := stringField(v, key); ok {
				d.Address = s
				break
			}
		}
		return d
	default:
		return Decoded{}
	}
}

func stringField(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

package tds

// XML values travel as UTF-16LE text inside a PLP stream with no
// schema validation performed by the core (MS-TDS 2.2.5.4.6). Decoding
// is handled by xmlCodec.Decode in registry.go, which receives the
// reassembled PLP bytes from decodeValue; this just builds the outbound
// form for RPC parameters.

func encodeXML(w *byteWriter, doc string) {
	writePLP(w, encodeUTF16LE(doc), false)
}

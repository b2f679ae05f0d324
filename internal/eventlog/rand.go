package eventlog

import "crypto/rand"

func readRandom(buf []byte) (int, error) {
	return rand.Read(buf)
}

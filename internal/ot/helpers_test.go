package ot

import "github.com/cait-sith-go/threshold-ecdsa/pkg/curve"

// testGroup is shared by every file in this package's test suite; group
// (declared in random_test.go) is the same curve under a different name
// for historical reasons.
var testGroup = curve.Secp256k1{}

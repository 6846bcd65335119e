// Command example wires up a full run of the pipeline this module
// implements — key generation, two triples, presigning, and signing —
// among a handful of in-process parties, to demonstrate pkg/protocol's
// Handler as the host-facing surface every other package here is built
// to sit behind.
package main

import (
	"crypto/sha256"
	"fmt"
	"log"
	"sync"

	"github.com/cait-sith-go/threshold-ecdsa/internal/engine"
	"github.com/cait-sith-go/threshold-ecdsa/internal/ot"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/curve"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/hash"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/party"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/pool"
	"github.com/cait-sith-go/threshold-ecdsa/pkg/protocol"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/keygen"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/presign"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/sign"
	"github.com/cait-sith-go/threshold-ecdsa/protocols/triple"
)

var group curve.Curve = curve.Secp256k1{}

// runAll starts one Handler per participant for the protocols builders
// returns, drives them all to completion over an in-process Network, and
// returns each participant's result keyed by ID.
func runAll(ids party.IDSlice, builders map[party.ID]engine.Protocol) map[party.ID]interface{} {
	net := NewNetwork(ids)
	results := make(map[party.ID]interface{}, len(ids))
	errs := make(map[party.ID]error, len(ids))
	var mtx sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		id, proto := id, builders[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := protocol.NewHandler(id, proto)
			res, err := Run(id, h, net)
			mtx.Lock()
			results[id], errs[id] = res, err
			mtx.Unlock()
		}()
	}
	wg.Wait()
	for id, err := range errs {
		if err != nil {
			panic(fmt.Errorf("party %s: %w", id, err))
		}
	}
	return results
}

// pairSetups runs the (local, message-free) Triple Setup handshake once
// for every unordered pair of ids against a shared setup pool, giving the
// lower id the Send (Δ-holding) half and the higher id the Receive half,
// and returns the reusable state each party holds against each of its
// peers. In a real deployment this handshake, like everything else,
// would run through the engine and a Network; it is done directly here
// only because Setup itself has no round structure worth wrapping in a
// Handler — see internal/ot/correlated.go's CorreOTSetup{Sender,Receiver}.
func pairSetups(ids party.IDSlice, pl *pool.Pool) map[party.ID]map[party.ID]*triple.PairSetup {
	out := make(map[party.ID]map[party.ID]*triple.PairSetup, len(ids))
	for _, id := range ids {
		out[id] = map[party.ID]*triple.PairSetup{}
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			low, high := ids[i], ids[j]

			ctxHash := hash.New()
			sender := ot.NewCorreOTSetupSender(pl, ctxHash.Clone())
			receiver := ot.NewCorreOTSetupReceiver(pl, ctxHash.Clone(), group)

			msgR1 := receiver.Round1()
			msgS1, err := sender.Round1(msgR1)
			if err != nil {
				panic(err)
			}
			msgR2, err := receiver.Round2(msgS1)
			if err != nil {
				panic(err)
			}
			msgS2 := sender.Round2(msgR2)
			msgR3, receiveSetup, err := receiver.Round3(msgS2)
			if err != nil {
				panic(err)
			}
			sendSetup, err := sender.Round3(msgR3)
			if err != nil {
				panic(err)
			}

			out[low][high] = &triple.PairSetup{Send: sendSetup}
			out[high][low] = &triple.PairSetup{Receive: receiveSetup}
		}
	}
	return out
}

func main() {
	const threshold = 2
	ids := party.IDSlice{1, 2, 3}

	pl := pool.NewPool(0)
	defer pl.TearDown()

	log.Println("running key generation...")
	keygenBuilders := map[party.ID]engine.Protocol{}
	for _, id := range ids {
		proto, err := keygen.Generate(group, ids, threshold)
		if err != nil {
			panic(err)
		}
		keygenBuilders[id] = proto
	}
	keygenResults := runAll(ids, keygenBuilders)
	keygenOut := map[party.ID]keygen.Output{}
	for _, id := range ids {
		keygenOut[id] = keygenResults[id].(keygen.Output)
	}
	pubKeyBytes, err := keygenOut[ids[0]].PublicKey.MarshalBinary()
	if err != nil {
		panic(err)
	}
	log.Printf("public key agreed: %x", pubKeyBytes)

	log.Println("setting up pairwise OT...")
	setups := pairSetups(ids, pl)

	genTriple := func() map[party.ID]triple.Result {
		builders := map[party.ID]engine.Protocol{}
		for _, id := range ids {
			builders[id] = triple.GenerateTriple(group, ids, threshold, setups[id])
		}
		results := runAll(ids, builders)
		out := map[party.ID]triple.Result{}
		for _, id := range ids {
			out[id] = results[id].(triple.Result)
		}
		return out
	}

	log.Println("generating two triples...")
	triple0 := genTriple()
	triple1 := genTriple()

	log.Println("presigning...")
	presignBuilders := map[party.ID]engine.Protocol{}
	for _, id := range ids {
		proto, err := presign.Generate(group, ids, presign.Arguments{
			Triple0:   triple0[id],
			Triple1:   triple1[id],
			KeygenOut: keygenOut[id],
			Threshold: threshold,
		})
		if err != nil {
			panic(err)
		}
		presignBuilders[id] = proto
	}
	presignResults := runAll(ids, presignBuilders)
	presigs := map[party.ID]presign.Output{}
	for _, id := range ids {
		presigs[id] = presignResults[id].(presign.Output)
	}

	log.Println("signing...")
	digest := sha256.Sum256([]byte("threshold ecdsa example message"))
	messageHash := curve.FromHash(group, digest[:])
	signBuilders := map[party.ID]engine.Protocol{}
	for _, id := range ids {
		proto, err := sign.Generate(group, ids, keygenOut[id].PublicKey, presigs[id], messageHash)
		if err != nil {
			panic(err)
		}
		signBuilders[id] = proto
	}
	signResults := runAll(ids, signBuilders)
	sig := signResults[ids[0]].(sign.Signature)
	rBytes, err := sig.R.MarshalBinary()
	if err != nil {
		panic(err)
	}
	sBytes, err := sig.S.MarshalBinary()
	if err != nil {
		panic(err)
	}
	log.Printf("signature: r=%x s=%x", rBytes, sBytes)
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/sealr"
	"github.com/luxfi/sealr/config"
	"github.com/luxfi/sealr/conversation"
	"github.com/luxfi/sealr/crypto/fhe"
	"github.com/luxfi/sealr/decryption"
	"github.com/luxfi/sealr/signer"
	"github.com/luxfi/sealr/storage"
	"github.com/luxfi/sealr/utils"
	"github.com/luxfi/sealr/vms/evm"
)

const demoDeliveryTimeout = 5 * time.Second

var errNotDelivered = errors.New("message not delivered yet")

var demoCmd = &cobra.Command{
	Use:   "demo [text]",
	Short: "Exchange encrypted messages between two local users",
	Long: `demo runs two clients against an in-memory ledger and co-processor.
Decrypted plaintexts are cached in the configured storage backend.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.ContractAddress == "" {
			cfg.ContractAddress = "0x0000000000000000000000000000000000005ea1"
		}
		text := "hello from sealr"
		if len(args) == 1 {
			text = args[0]
		}

		ctx := cmd.Context()
		store, closeStore, err := openStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		return runDemo(ctx, newLogger(cfg), cfg, store, text, cmd.OutOrStdout())
	},
}

type demoClient struct {
	name      string
	addr      common.Address
	submitter *evm.Submitter
	decrypter *decryption.Cache
	store     *conversation.Store
}

func newDemoClient(
	logger log.Logger,
	cfg config.Config,
	name string,
	ledger *sealr.FakeLedger,
	client *fhe.FakeClient,
	store storage.Storage,
	registry *prometheus.Registry,
) (*demoClient, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	addr := common.Address(crypto.PubkeyToAddress(key.PublicKey))
	logger = logger.With(zap.String("user", name))
	view := ledger.As(addr)
	instance := fhe.Ready(client)
	// Each client registers its collectors under its own label.
	registerer := prometheus.WrapRegistererWith(prometheus.Labels{"user": name}, registry)

	submitter := evm.NewSubmitter(
		logger,
		fhe.NewEngine(logger, instance, cfg.EncryptBatchSize),
		view,
		view,
		addr,
		evm.NewMetrics(registerer),
		cfg.SubmitterConfig(),
	)
	decrypter := decryption.New(logger, instance, store, decryption.NewMetrics(registerer), cfg.DecryptionConfig())

	var sealed *signer.SealedStore
	if cfg.SignaturePassphrase != "" {
		sealed = signer.NewSealedStore(store, []byte(cfg.SignaturePassphrase))
	}
	provider, err := signer.NewLocalProvider(logger, key, client, sealed, cfg.SignatureDuration)
	if err != nil {
		return nil, err
	}
	return &demoClient{
		name:      name,
		addr:      addr,
		submitter: submitter,
		decrypter: decrypter,
		store:     conversation.New(logger, view, submitter, decrypter, provider, cfg.ConversationConfig()),
	}, nil
}

func runDemo(ctx context.Context, logger log.Logger, cfg config.Config, store storage.Storage, text string, out io.Writer) error {
	registry := prometheus.NewRegistry()
	client := fhe.NewFakeClient()
	ledger := sealr.NewFakeLedger(common.Address{})

	clients := make([]*demoClient, 0, 2)
	for _, name := range []string{"alice", "bob"} {
		c, err := newDemoClient(logger, cfg, name, ledger, client, store, registry)
		if err != nil {
			return err
		}
		defer c.decrypter.Close()
		if err := c.store.CreateProfile(ctx, name, ""); err != nil {
			return fmt.Errorf("failed to create profile %s: %w", name, err)
		}
		clients = append(clients, c)
	}
	alice, bob := clients[0], clients[1]

	id, err := alice.store.GetOrCreateDirectConversation(ctx, bob.addr)
	if err != nil {
		return err
	}
	for _, c := range clients {
		convs, err := c.store.FetchConversations(ctx)
		if err != nil {
			return err
		}
		for i := range convs {
			if convs[i].ID == id {
				c.store.SetActiveConversation(&convs[i])
			}
		}
		if err := c.store.LoadMessages(ctx); err != nil {
			return err
		}
		defer c.store.Subscribe(ctx, ledger.Events())()
	}

	if _, err := alice.store.SendMessage(ctx, text); err != nil {
		return fmt.Errorf("alice failed to send: %w", err)
	}
	err = utils.PollUntil(ctx, func() error {
		if len(bob.store.Messages()) == 0 {
			return errNotDelivered
		}
		return nil
	}, 10*time.Millisecond, demoDeliveryTimeout)
	if err != nil {
		return err
	}
	received := bob.store.Messages()[0]
	if err := bob.store.ChangeReaction(ctx, received.ID, sealr.ReactionLike); err != nil {
		return err
	}

	for _, c := range clients {
		conv, _ := c.store.ActiveConversation()
		fmt.Fprintf(out, "%s sees conversation %d with %s:\n", c.name, conv.ID, conv.ReceiverName)
		for _, msg := range c.store.Messages() {
			fmt.Fprintf(out, "  #%s %-8s %s %s\n", msg.ID, msg.Direction, msg.Content, msg.Reaction.Emoji())
		}
	}

	// The messenger path goes through the same co-processor.
	sent, err := bob.submitter.SendDirect(ctx, alice.addr, "42")
	if err != nil {
		return err
	}
	inbox, err := evm.NewReader(logger, ledger).FetchInbox(ctx, alice.addr, 0, 10)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "bob sent direct message %s via %s, alice's inbox holds %d message(s)\n", sent.MessageID, sent.Strategy, len(inbox))
	for _, msg := range inbox {
		id, err := strconv.ParseUint(msg.ID, 10, 64)
		if err != nil {
			return err
		}
		if err := alice.submitter.MarkAsRead(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

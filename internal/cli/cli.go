// Package cli builds the coordinator's Cobra command tree: run (start the
// coordinator process), submit (send a GenerateProof request to a running
// coordinator), and status (poll GetStatus). Adapted from the teacher's
// internal/cli/cli.go (same BuildCLI/buildXxxCommand shape, same global
// --config flag), with the worker/master/standalone mode split collapsed
// into a single `run` — this coordinator always dials workers itself, it
// never runs as one.
package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/zkstage/coordinator/api/zkstagepb"
)

var configFile string

// BuildCLI assembles the root command and its subcommands.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zkstage-coordinator",
		Short: "zkstage-coordinator: orchestrates zero-knowledge proof generation across remote workers",
		Long: `zkstage-coordinator accepts proof-generation requests, splits and
schedules the Split/Prove/Aggregate/Snark task graph across a pool of
remote workers, and survives crashes by recovering abandoned submissions
from durable state.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/coordinator.toml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildSubmitCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the coordinator process",
		Long:  "Load the config file, open durable storage, dial workers, and serve the client-facing gRPC API until an interrupt signal arrives.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinator(configFile)
		},
	}
	return cmd
}

func buildSubmitCommand() *cobra.Command {
	var (
		addr        string
		elfPath     string
		publicPath  string
		privatePath string
		segSize     uint64
		executeOnly bool
		proverKind  string
		signature   string
		proofID     string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a proof-generation request to a running coordinator",
		Long: `Read an ELF image (and optional input streams) from disk and send it to a
coordinator's GenerateProof RPC. --signature must already be computed by the
submitter's own key over "<proof_id>&<seg_size>" (this command sends no block
number) — this command never holds or generates a key itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitProof(addr, proofID, signature, elfPath, publicPath, privatePath, segSize, executeOnly, proverKind)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:50000", "coordinator address")
	cmd.Flags().StringVar(&proofID, "proof-id", "", "proof_id to submit under (generated server-side if omitted)")
	cmd.Flags().StringVar(&signature, "signature", "", "hex-encoded ECDSA signature over the proof_id/seg_size payload")
	cmd.Flags().StringVar(&elfPath, "elf", "", "path to the ELF image to prove")
	cmd.Flags().StringVar(&publicPath, "public-input", "", "path to the public input stream")
	cmd.Flags().StringVar(&privatePath, "private-input", "", "path to the private input stream")
	cmd.Flags().Uint64Var(&segSize, "seg-size", 262144, "segment size in cycles")
	cmd.Flags().BoolVar(&executeOnly, "execute-only", false, "stop after Split, skipping Prove/Aggregate/Snark")
	cmd.Flags().StringVar(&proverKind, "prover", "v1", "prover backend: v1 or v2")
	cmd.MarkFlagRequired("elf")
	cmd.MarkFlagRequired("signature")

	return cmd
}

func submitProof(addr, proofID, signature, elfPath, publicPath, privatePath string, segSize uint64, executeOnly bool, proverKind string) error {
	elfData, err := os.ReadFile(elfPath)
	if err != nil {
		return fmt.Errorf("read elf: %w", err)
	}
	var publicInput, privateInput []byte
	if publicPath != "" {
		if publicInput, err = os.ReadFile(publicPath); err != nil {
			return fmt.Errorf("read public input: %w", err)
		}
	}
	if privatePath != "" {
		if privateInput, err = os.ReadFile(privatePath); err != nil {
			return fmt.Errorf("read private input: %w", err)
		}
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	client := zkstagepb.NewStageServiceClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.GenerateProof(ctx, &zkstagepb.GenerateProofRequest{
		ProofId:            proofID,
		Signature:          signature,
		ElfData:            elfData,
		PublicInputStream:  publicInput,
		PrivateInputStream: privateInput,
		SegSize:            segSize,
		ExecuteOnly:        executeOnly,
		ProverKind:         proverKind,
	})
	if err != nil {
		return fmt.Errorf("generate_proof: %w", err)
	}

	fmt.Printf("proof_id:      %s\n", resp.ProofId)
	fmt.Printf("status:        %s\n", resp.Status)
	if resp.ErrorMessage != "" {
		fmt.Printf("error:         %s\n", resp.ErrorMessage)
	}
	if resp.SnarkProofURL != "" {
		fmt.Printf("snark_url:     %s\n", resp.SnarkProofURL)
		fmt.Printf("stark_url:     %s\n", resp.StarkProofURL)
		fmt.Printf("public_values: %s\n", resp.PublicValuesURL)
	}
	return nil
}

func buildStatusCommand() *cobra.Command {
	var addr, proofID string
	var showResult bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Poll a submission's current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(addr, proofID, showResult)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50000", "coordinator address")
	cmd.Flags().StringVar(&proofID, "proof-id", "", "submission to query")
	cmd.Flags().BoolVar(&showResult, "show-result", false, "print the result blob (base64) once available")
	cmd.MarkFlagRequired("proof-id")

	return cmd
}

func showStatus(addr, proofID string, showResult bool) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	client := zkstagepb.NewStageServiceClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.GetStatus(ctx, &zkstagepb.GetStatusRequest{ProofId: proofID})
	if err != nil {
		return fmt.Errorf("get_status: %w", err)
	}

	if resp.Status == "" {
		fmt.Printf("submission %s: not found\n", proofID)
		return nil
	}

	fmt.Printf("proof_id: %s\n", resp.ProofId)
	fmt.Printf("status:   %s\n", resp.Status)
	fmt.Printf("step:     %s\n", resp.Step)
	if showResult && len(resp.ProofWithPublicInputs) > 0 {
		fmt.Printf("result:   %s\n", base64.StdEncoding.EncodeToString(resp.ProofWithPublicInputs))
	}
	return nil
}

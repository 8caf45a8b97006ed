package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"
	"golang.org/x/term"

	"github.com/sqlalign/sqlalign/align"
	"github.com/sqlalign/sqlalign/database"
	"github.com/sqlalign/sqlalign/database/mssql"
	"github.com/sqlalign/sqlalign/declared"
	"github.com/sqlalign/sqlalign/util"
)

var version string

type options struct {
	User        string `short:"U" long:"user" description:"MSSQL user name" value-name:"user_name" default:"sa"`
	Password    string `short:"P" long:"password" description:"MSSQL user password, overridden by $MSSQL_PWD" value-name:"password"`
	Host        string `short:"h" long:"host" description:"Host to connect to the MSSQL server" value-name:"host_name" default:"127.0.0.1"`
	Port        uint   `short:"p" long:"port" description:"Port used for the connection" value-name:"port_num" default:"1433"`
	Prompt      bool   `long:"password-prompt" description:"Force MSSQL user password prompt"`
	File        string `long:"file" description:"Read the declared topology from the file, rather than stdin" value-name:"yml_file" default:"-"`
	AutoApprove bool   `long:"auto-approve" description:"Apply every change without asking"`
	Dump        bool   `long:"dump" description:"Print the parsed declared tree and exit"`
	Help        bool   `long:"help" description:"Show this help"`
	Version     bool   `long:"version" description:"Show this version"`
}

// parseOptions returns the connection config, the remaining options and the
// initial database name to attach to.
func parseOptions(args []string) (database.Config, *options) {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options] [db_name]"
	args, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	if len(args) > 1 {
		fmt.Printf("Multiple databases are given: %v\n\n", args)
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}
	// The declaration spans the whole server; the positional name only picks
	// the database the session attaches to first.
	databaseName := "master"
	if len(args) == 1 {
		databaseName = args[0]
	}

	password, ok := os.LookupEnv("MSSQL_PWD")
	if !ok {
		password = opts.Password
	}
	if opts.Prompt {
		fmt.Printf("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatal(err)
		}
		password = string(pass)
	}

	config := database.Config{
		DbName:   databaseName,
		User:     opts.User,
		Password: password,
		Host:     opts.Host,
		Port:     int(opts.Port),
	}
	return config, &opts
}

// confirmInput returns the stream confirmations are read from. When the
// topology itself comes from stdin the prompt must use the terminal, or
// it would read EOF and decline every change.
func confirmInput(file string) (io.Reader, error) {
	if file != "-" {
		return os.Stdin, nil
	}
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return nil, fmt.Errorf("stdin carries the topology and no terminal is available for confirmations (use --file or --auto-approve): %w", err)
	}
	return tty, nil
}

func readDeclaration(file string) (*declared.Node, error) {
	if file == "-" {
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return declared.Parse(buf)
	}
	return declared.Load(file)
}

func main() {
	util.InitSlog()
	config, opts := parseOptions(os.Args[1:])

	tree, err := readDeclaration(opts.File)
	if err != nil {
		log.Fatalf("Failed to read declaration: %s", err)
	}
	if opts.Dump {
		pp.Println(tree)
		os.Exit(0)
	}

	exec, err := mssql.NewExecutor(config, database.StdoutLogger{})
	if err != nil {
		log.Fatal(err)
	}
	defer exec.Close()

	confirm := database.ConfirmFunc(database.AutoApprove)
	if !opts.AutoApprove {
		in, err := confirmInput(opts.File)
		if err != nil {
			log.Fatal(err)
		}
		confirm = database.NewPrompt(in, os.Stdout)
	}

	if err := align.Server(exec, confirm, tree); err != nil {
		log.Fatal(err)
	}
}

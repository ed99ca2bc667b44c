package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joripage/utxo-orderbook/pkg/ingest"
	"github.com/joripage/utxo-orderbook/pkg/utxo"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	fix44er "github.com/quickfixgo/fix44/executionreport"
	fix44nos "github.com/quickfixgo/fix44/newordersingle"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"github.com/shopspring/decimal"
)

// InitiatorApp sends the loaded orders once logged on and prints the
// execution reports it gets back.
type InitiatorApp struct {
	*quickfix.MessageRouter
	orders []utxo.Order
	gtc    bool
	sent   bool
}

func NewInitiatorApp(orders []utxo.Order, gtc bool) *InitiatorApp {
	a := &InitiatorApp{MessageRouter: quickfix.NewMessageRouter(), orders: orders, gtc: gtc}
	a.AddRoute(fix44er.Route(a.onExecutionReport))
	return a
}

func (a *InitiatorApp) OnCreate(sessionID quickfix.SessionID) {}

func (a *InitiatorApp) OnLogon(sessionID quickfix.SessionID) {
	log.Println("Logon success", sessionID)
	if a.sent {
		return
	}
	a.sent = true
	for _, o := range a.orders {
		if err := quickfix.SendToTarget(a.newOrder(o), sessionID); err != nil {
			log.Println("send:", err)
		}
	}
	log.Printf("sent %d orders", len(a.orders))
}

func (a *InitiatorApp) OnLogout(sessionID quickfix.SessionID)                       {}
func (a *InitiatorApp) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}
func (a *InitiatorApp) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}
func (a *InitiatorApp) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}
func (a *InitiatorApp) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return a.Route(msg, sessionID)
}

func (a *InitiatorApp) onExecutionReport(msg fix44er.ExecutionReport, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, _ := msg.GetClOrdID()
	execType, _ := msg.GetExecType()
	text, _ := msg.GetText()
	log.Printf("report %s: exec_type=%s %s", clOrdID, execType, text)
	return nil
}

func (a *InitiatorApp) newOrder(o utxo.Order) fix44nos.NewOrderSingle {
	side := enum.Side_BUY
	if o.Side == utxo.Sell {
		side = enum.Side_SELL
	}
	msg := fix44nos.New(
		field.NewClOrdID(randSeq(17)),
		field.NewSide(side),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT))
	msg.SetAccount(o.Owner.Hex())
	msg.SetPrice(decimal.NewFromUint64(o.Price), 0)
	msg.SetOrderQty(decimal.NewFromUint64(o.Quantity), 0)
	if a.gtc {
		msg.SetTimeInForce(enum.TimeInForce_GOOD_TILL_CANCEL)
	} else {
		msg.SetTimeInForce(enum.TimeInForce_DAY)
	}
	return msg
}

func main() {
	var (
		cfgPath    string
		ordersPath string
		gtc        bool
	)
	flag.StringVar(&cfgPath, "fix-config", "./config/fixclient.cfg", "FIX initiator settings")
	flag.StringVar(&ordersPath, "orders", "orders.csv", "CSV file with side,price,quantity,owner,expiry_batch")
	flag.BoolVar(&gtc, "gtc", false, "Send orders as GTC instead of DAY")
	flag.Parse()

	f, err := os.Open(ordersPath)
	if err != nil {
		log.Fatal(err)
	}
	// expiry_batch is ignored: the intake derives it from TimeInForce
	orders, err := ingest.ReadCSV(f, ingest.NewCounterNonce(1), 0)
	f.Close() // nolint
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := os.Open(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	defer cfg.Close() // nolint

	settings, err := quickfix.ParseSettings(cfg)
	if err != nil {
		log.Fatal(err)
	}

	storeFactory := quickfix.NewMemoryStoreFactory()
	logFactory, _ := file.NewLogFactory(settings)
	initiator, err := quickfix.NewInitiator(NewInitiatorApp(orders, gtc), storeFactory, settings, logFactory)
	if err != nil {
		log.Fatal(err)
	}
	err = initiator.Start()
	if err != nil {
		log.Fatal(err)
	}
	log.Println("Initiator started...")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	initiator.Stop()
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func randSeq(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

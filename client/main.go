// Command client is a terminal chat client: it logs into the REST API,
// joins a group's websocket channel and relays stdin lines as messages.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notedhq/noted/pkg/model"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

func login(apiAddr, username, password string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(apiAddr+"/api/auth/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

func register(apiAddr, username, email, password string) error {
	reqBody, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	resp, err := http.Post(apiAddr+"/api/auth/register", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register failed: %s", string(body))
	}
	return nil
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "server address")
	apiAddr := flag.String("api", "http://localhost:8080", "api base url")
	username := flag.String("user", "user1", "username")
	password := flag.String("pass", "", "password")
	email := flag.String("email", "", "email (register first when set)")
	groupID := flag.Int64("group", 0, "group id to join")
	flag.Parse()

	if *password == "" || *groupID == 0 {
		log.Fatal("-pass and -group are required")
	}

	if *email != "" {
		log.Printf("Registering %s...", *username)
		if err := register(*apiAddr, *username, *email, *password); err != nil {
			log.Fatal(err)
		}
	}

	log.Printf("Logging in as %s...", *username)
	token, err := login(*apiAddr, *username, *password)
	if err != nil {
		log.Fatal("Login failed:", err)
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: fmt.Sprintf("/ws/chat/%d", *groupID)}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	log.Printf("connecting to %s", u.Path)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}

			var ev model.ChatEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				log.Printf("Received raw: %s", raw)
				continue
			}

			switch ev.Type {
			case model.EventError:
				fmt.Printf("\r! %s\n> ", ev.Detail)
			default:
				fmt.Printf("\r%s: %s\n> ", ev.Sender.Username, ev.Content)
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	quit := make(chan struct{})

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				fmt.Print("> ")
				continue
			}
			if text == "/quit" {
				close(quit)
				break
			}

			frame, _ := json.Marshal(map[string]string{"message": text})
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Println("write:", err)
				break
			}
			fmt.Print("> ")
		}
	}()

	select {
	case <-done:
		return
	case <-interrupt:
		log.Println("interrupt")
	case <-quit:
	}

	// Cleanly close the connection by sending a close message and then
	// waiting (with timeout) for the server to close the connection.
	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("write close:", err)
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

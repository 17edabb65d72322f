package fixtures

const loginPage = `<!DOCTYPE html>
<html>
<head><title>The Internet</title></head>
<body>
  <h2>Login Page</h2>
  <div id="flash" class="flash">{{FLASH}}</div>
  <form id="login" method="post" action="/authenticate">
    <label for="username">Username</label>
    <input id="username" name="username" type="text">
    <label for="password">Password</label>
    <input id="password" name="password" type="password">
    <button class="radius" type="submit">Login</button>
  </form>
  <button id="hidden" style="display:none">Hidden</button>
</body>
</html>`

const securePage = `<!DOCTYPE html>
<html>
<head><title>Secure Area</title></head>
<body>
  <div id="flash" class="flash success">You logged into a secure area!</div>
  <a class="button" href="/logout">Logout</a>
</body>
</html>`

const windowsPage = `<!DOCTYPE html>
<html>
<head><title>The Internet</title></head>
<body>
  <h3>Opening a new window</h3>
  <a href="/windows/new" target="_blank">Click Here</a>
</body>
</html>`

const newWindowPage = `<!DOCTYPE html>
<html>
<head><title>New Window</title></head>
<body><h3>New Window</h3></body>
</html>`

const alertsPage = `<!DOCTYPE html>
<html>
<head><title>JavaScript Alerts</title></head>
<body>
  <button id="alert" onclick="alert('I am a JS Alert'); result.textContent = 'You successfully clicked an alert'">Click for JS Alert</button>
  <button id="confirm" onclick="result.textContent = 'You clicked: ' + (confirm('I am a JS Confirm') ? 'Ok' : 'Cancel')">Click for JS Confirm</button>
  <button id="prompt" onclick="result.textContent = 'You entered: ' + prompt('I am a JS prompt')">Click for JS Prompt</button>
  <p id="result"></p>
</body>
</html>`

const framesPage = `<!DOCTYPE html>
<html>
<head><title>An iFrame containing the TinyMCE WYSIWYG Editor</title></head>
<body>
  <iframe id="mce" name="mce" src="/iframe/content"></iframe>
  <my-card id="card"></my-card>
  <script>
    customElements.define("my-card", class extends HTMLElement {
      connectedCallback() {
        const root = this.attachShadow({ mode: "open" });
        root.innerHTML = '<button class="inner" onclick="this.textContent = \'Pressed\'">Inside</button>';
      }
    });
  </script>
</body>
</html>`

const frameContentPage = `<!DOCTYPE html>
<html>
<head><title>Editor</title></head>
<body><p id="tinymce" contenteditable="true">Your content goes here.</p></body>
</html>`

const formsPage = `<!DOCTYPE html>
<html>
<head><title>Forms</title>
<style>
  @keyframes slide { from { transform: translateX(0); } to { transform: translateX(200px); } }
  #sliding { animation: slide 1s linear infinite alternate; }
</style>
</head>
<body>
  <form id="checkboxes">
    <input type="checkbox" id="cb1"> checkbox 1
    <input type="checkbox" id="cb2" checked> checkbox 2
  </form>
  <label for="dropdown">Dropdown List</label>
  <select id="dropdown">
    <option value="" disabled selected>Please select an option</option>
    <option value="1">Option 1</option>
    <option value="2">Option 2</option>
  </select>
  <button id="disabled" disabled>Disabled</button>
  <button id="sliding">Sliding</button>
  <input id="upload" type="file">
  <div data-testid="status">ready</div>
</body>
</html>`
